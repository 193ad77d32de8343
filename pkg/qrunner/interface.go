// Package qrunner talks to the compute backends that actually execute jobs.
// The gateway never runs user code itself in production: it hands a working
// directory and an entrypoint to a backend and later asks about the job by the
// id the backend returned.
package qrunner

import (
	"context"
	"errors"
	"fmt"
)

// Status is the remote job vocabulary. The values match the Ray job API
// strings; other backends translate into it.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusStopped   Status = "STOPPED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Finished reports whether the job can no longer change state.
func (s Status) Finished() bool {
	return s == StatusStopped || s == StatusSucceeded || s == StatusFailed
}

// JobSpec defines the specification for a job to be run
type JobSpec struct {
	Entrypoint string            // full command line, e.g. "python main.py"
	WorkingDir string            // directory shipped to the backend as the job's cwd
	Env        map[string]string // environment variables for the job
	Packages   []string          // pip packages installed before the entrypoint runs
	Metadata   map[string]string // free-form labels, stored with the remote job
}

// Runner defines the interface for executing jobs
type Runner interface {
	// Submit ships the job and returns the id the backend assigned to it.
	Submit(ctx context.Context, spec JobSpec) (string, error)

	// Status returns the current remote status of a job.
	Status(ctx context.Context, remoteID string) (Status, error)

	// Logs returns the complete log output of a job.
	Logs(ctx context.Context, remoteID string) (string, error)

	// Stop asks the backend to stop a job. alreadyStopped is true when the
	// job was not running anymore and nothing had to be stopped.
	Stop(ctx context.Context, remoteID string) (alreadyStopped bool, err error)
}

var ErrJobNotFound = errors.New("remote job not found")

// RemoteError is a non-success answer from a backend API.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote returned status %d: %s", e.Op, e.Status, e.Body)
}
