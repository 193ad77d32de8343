package qrunner

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qlog"
)

// RayRunner submits jobs through the Ray dashboard job-submission REST API.
type RayRunner struct {
	baseURL string
	client  *http.Client
	logger  *qlog.Logger
}

// NewRayRunner creates a runner for the cluster at baseURL. A zero timeout
// leaves requests uncapped.
func NewRayRunner(baseURL string, timeout time.Duration, logger *qlog.Logger) *RayRunner {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	return &RayRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type rayRuntimeEnv struct {
	WorkingDir string            `json:"working_dir,omitempty"`
	EnvVars    map[string]string `json:"env_vars,omitempty"`
	Pip        []string          `json:"pip,omitempty"`
}

type raySubmitRequest struct {
	Entrypoint string            `json:"entrypoint"`
	RuntimeEnv rayRuntimeEnv     `json:"runtime_env"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type raySubmitResponse struct {
	JobID        string `json:"job_id"`
	SubmissionID string `json:"submission_id"`
}

func (r *RayRunner) Submit(ctx context.Context, spec JobSpec) (string, error) {
	req := raySubmitRequest{
		Entrypoint: spec.Entrypoint,
		RuntimeEnv: rayRuntimeEnv{
			EnvVars: spec.Env,
			Pip:     spec.Packages,
		},
		Metadata: spec.Metadata,
	}

	if spec.WorkingDir != "" {
		uri, err := r.uploadWorkingDir(ctx, spec.WorkingDir)
		if err != nil {
			return "", err
		}
		req.RuntimeEnv.WorkingDir = uri
	}

	var resp raySubmitResponse
	if err := r.do(ctx, "submit", http.MethodPost, "/api/jobs/", req, &resp); err != nil {
		return "", err
	}

	id := resp.SubmissionID
	if id == "" {
		id = resp.JobID
	}
	if id == "" {
		return "", fmt.Errorf("submit: remote returned no job id")
	}

	r.logger.Debug("ray job submitted", "job_id", id)
	return id, nil
}

func (r *RayRunner) Status(ctx context.Context, remoteID string) (Status, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := r.do(ctx, "status", http.MethodGet, "/api/jobs/"+remoteID, nil, &resp); err != nil {
		return "", err
	}
	return Status(resp.Status), nil
}

func (r *RayRunner) Logs(ctx context.Context, remoteID string) (string, error) {
	var resp struct {
		Logs string `json:"logs"`
	}
	if err := r.do(ctx, "logs", http.MethodGet, "/api/jobs/"+remoteID+"/logs", nil, &resp); err != nil {
		return "", err
	}
	return resp.Logs, nil
}

func (r *RayRunner) Stop(ctx context.Context, remoteID string) (bool, error) {
	var resp struct {
		Stopped bool `json:"stopped"`
	}
	if err := r.do(ctx, "stop", http.MethodPost, "/api/jobs/"+remoteID+"/stop", nil, &resp); err != nil {
		return false, err
	}
	return !resp.Stopped, nil
}

// uploadWorkingDir zips dir into a content-addressed package and uploads it
// unless the cluster already has it. Returns the gcs:// URI for runtime_env.
func (r *RayRunner) uploadWorkingDir(ctx context.Context, dir string) (string, error) {
	var buf bytes.Buffer
	if err := qart.PackZip(dir, &buf); err != nil {
		return "", err
	}

	sum := sha1.Sum(buf.Bytes())
	name := "_ray_pkg_" + hex.EncodeToString(sum[:]) + ".zip"
	path := "/api/packages/gcs/" + name

	exists, err := r.packageExists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := r.send(ctx, "upload", http.MethodPut, path, "application/zip", bytes.NewReader(buf.Bytes()), nil); err != nil {
			return "", err
		}
		r.logger.Debug("uploaded working dir package", "package", name, "bytes", buf.Len())
	}

	return "gcs://" + name, nil
}

func (r *RayRunner) packageExists(ctx context.Context, path string) (bool, error) {
	err := r.send(ctx, "package", http.MethodGet, path, "", nil, nil)
	if err == nil {
		return true, nil
	}
	if remote, ok := err.(*RemoteError); ok && remote.Status == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (r *RayRunner) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return r.send(ctx, op, method, path, contentType, body, out)
}

func (r *RayRunner) send(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && out != nil && op != "submit" {
		return fmt.Errorf("%s: %w", op, ErrJobNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &RemoteError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

var _ Runner = (*RayRunner)(nil)
