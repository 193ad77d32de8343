package qrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/qlog"
)

// LocalRunner executes jobs as child processes of the gateway. It exists for
// development: nothing is isolated and dependencies are not installed.
type LocalRunner struct {
	baseDir string // runs live under <baseDir>/runs/<id>
	logger  *qlog.Logger
	mu      sync.RWMutex
	runs    map[string]*runProcess // in-memory tracking of active runs
}

// Run is the on-disk record of a local job, persisted as run.json.
type Run struct {
	ID         string            `json:"id"`
	Status     Status            `json:"status"`
	Entrypoint string            `json:"entrypoint"`
	Packages   []string          `json:"packages,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	ExitCode   *int              `json:"exit_code,omitempty"`
	RunDir     string            `json:"run_dir"`
	WorkDir    string            `json:"work_dir"`
	LogsPath   string            `json:"logs_path"`
}

// runProcess tracks an active process
type runProcess struct {
	run    *Run
	cancel context.CancelFunc
	done   chan struct{}
}

// LocalRunnerOption configures a LocalRunner
type LocalRunnerOption func(*LocalRunner)

// WithBaseDir sets the base directory for runs
func WithBaseDir(baseDir string) LocalRunnerOption {
	return func(r *LocalRunner) {
		r.baseDir = baseDir
	}
}

// WithLogger sets the logger used for process lifecycle messages
func WithLogger(logger *qlog.Logger) LocalRunnerOption {
	return func(r *LocalRunner) {
		r.logger = logger
	}
}

func NewLocalRunner(opts ...LocalRunnerOption) *LocalRunner {
	cwd, _ := os.Getwd()
	r := &LocalRunner{
		baseDir: filepath.Join(cwd, ".qgate"),
		logger:  qlog.NewDiscard(),
		runs:    make(map[string]*runProcess),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *LocalRunner) runDir(runID string) string {
	return filepath.Join(r.baseDir, "runs", runID)
}

// Submit copies the working directory into the run directory, since the
// caller removes its copy as soon as Submit returns, and starts the process.
func (r *LocalRunner) Submit(ctx context.Context, spec JobSpec) (string, error) {
	// UUIDv7 keeps run directories sorted by creation time
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	runID := id.String()

	runDir := r.runDir(runID)
	workDir := filepath.Join(runDir, "workdir")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	if spec.WorkingDir != "" {
		if err := copyTree(spec.WorkingDir, workDir); err != nil {
			return "", fmt.Errorf("failed to copy working directory: %w", err)
		}
	}

	run := &Run{
		ID:         runID,
		Status:     StatusPending,
		Entrypoint: spec.Entrypoint,
		Packages:   spec.Packages,
		Metadata:   spec.Metadata,
		CreatedAt:  time.Now(),
		RunDir:     runDir,
		WorkDir:    workDir,
		LogsPath:   filepath.Join(runDir, "output.log"),
	}
	if err := r.saveRun(run); err != nil {
		return "", fmt.Errorf("failed to save run state: %w", err)
	}
	if len(spec.Packages) > 0 {
		r.logger.Warn("local runner does not install packages", "run_id", runID, "packages", spec.Packages)
	}

	// The job outlives the request that submitted it.
	execCtx, cancel := context.WithCancel(context.Background())
	proc := &runProcess{run: run, cancel: cancel, done: make(chan struct{})}
	r.mu.Lock()
	r.runs[runID] = proc
	r.mu.Unlock()

	go r.executeRun(execCtx, proc, spec.Env)

	return runID, nil
}

func (r *LocalRunner) executeRun(ctx context.Context, proc *runProcess, env map[string]string) {
	run := proc.run
	defer close(proc.done)
	defer func() {
		r.mu.Lock()
		delete(r.runs, run.ID)
		r.mu.Unlock()
	}()

	now := time.Now()
	run.StartedAt = &now
	run.Status = StatusRunning
	r.saveRun(run)

	cmd := exec.CommandContext(ctx, "sh", "-c", run.Entrypoint)
	cmd.Dir = run.WorkDir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	logFile, err := os.Create(run.LogsPath)
	if err != nil {
		r.finishRun(run, StatusFailed, nil)
		return
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	err = cmd.Run()

	switch {
	case err == nil:
		code := 0
		r.finishRun(run, StatusSucceeded, &code)
	case ctx.Err() == context.Canceled:
		r.finishRun(run, StatusStopped, nil)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			r.finishRun(run, StatusFailed, &code)
		} else {
			fmt.Fprintln(logFile, err.Error())
			r.finishRun(run, StatusFailed, nil)
		}
	}

	r.logger.Debug("local run finished", "run_id", run.ID, "status", run.Status)
}

func (r *LocalRunner) finishRun(run *Run, status Status, exitCode *int) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	run.ExitCode = exitCode
	r.saveRun(run)
}

func (r *LocalRunner) Status(ctx context.Context, runID string) (Status, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	return run.Status, nil
}

func (r *LocalRunner) Logs(ctx context.Context, runID string) (string, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(run.LogsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}
	return string(data), nil
}

func (r *LocalRunner) Stop(ctx context.Context, runID string) (bool, error) {
	r.mu.RLock()
	proc, active := r.runs[runID]
	r.mu.RUnlock()

	if !active {
		if _, err := r.GetRun(ctx, runID); err != nil {
			return false, err
		}
		return true, nil
	}

	proc.cancel()
	<-proc.done
	return false, nil
}

// Wait blocks until the run has finished.
func (r *LocalRunner) Wait(ctx context.Context, runID string) (*Run, error) {
	r.mu.RLock()
	proc, active := r.runs[runID]
	r.mu.RUnlock()

	if active {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-proc.done:
		}
	}
	return r.GetRun(ctx, runID)
}

func (r *LocalRunner) GetRun(_ context.Context, runID string) (*Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, ErrJobNotFound
	}
	data, err := os.ReadFile(filepath.Join(r.runDir(runID), "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run state: %w", err)
	}
	return &run, nil
}

func (r *LocalRunner) saveRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	path := filepath.Join(run.RunDir, "run.json")
	if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}
	return os.Rename(path+".tmp", path)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		info, err := d.Info()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

var _ Runner = (*LocalRunner)(nil)
