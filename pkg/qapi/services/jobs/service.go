// Package jobs proxies job operations to the compute resource a job was
// submitted to and keeps the local record in step.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qlog"
	"github.com/quatton/qgate/pkg/qrunner"
)

const (
	MessageStopped        = "Job has been stopped successfully."
	MessageAlreadyStopped = "Job was already not running."
)

// RunnerFactory resolves a compute resource host to its backend.
type RunnerFactory interface {
	For(host string) (qrunner.Runner, error)
}

type Service struct {
	store   store.Store
	runners RunnerFactory
	logger  *qlog.Logger
}

func NewService(st store.Store, runners RunnerFactory, logger *qlog.Logger) *Service {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	return &Service{store: st, runners: runners, logger: logger}
}

// Create attaches a job to one of the caller's programs without submitting
// it. An empty arguments string takes the program's.
func (s *Service) Create(ctx context.Context, p *iam.Principal, programID uuid.UUID, arguments string) (*models.Job, error) {
	program, err := s.store.GetProgram(ctx, p.ID, programID)
	if err != nil {
		if qerr.IsCode(err, qerr.CodeNotFound) {
			return nil, qerr.Validation(qerr.FieldErrors{
				"program_id": fmt.Sprintf("Invalid pk %q - object does not exist.", programID),
			})
		}
		return nil, err
	}
	if arguments == "" {
		arguments = program.Arguments
	}

	job := &models.Job{
		ID:              uuid.New(),
		ProgramID:       program.ID,
		OwnerID:         p.ID,
		Arguments:       arguments,
		Status:          models.JobStatusPending,
		SubmissionState: models.SubmissionCreated,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job: %w", err)
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, p *iam.Principal) ([]models.Job, error) {
	return s.store.ListJobs(ctx, p.ID)
}

// Retrieve looks a job up by id alone and refreshes its status from the
// cluster when it was submitted.
func (s *Service) Retrieve(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Submitted() {
		return job, nil
	}

	runner, err := s.runners.For(job.ComputeResource.Host)
	if err != nil {
		return nil, err
	}
	remote, err := runner.Status(ctx, job.RemoteJobID)
	if err != nil {
		return nil, err
	}

	status := TranslateStatus(remote)
	if status == models.JobStatusUnknown {
		s.logger.Warn("unrecognised remote status", "job_id", job.ID, "status", remote)
	}
	job.Status = status
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job status: %w", err)
	}
	return job, nil
}

// Result stores the JSON encoding of value, "null" when value is nil.
func (s *Service) Result(ctx context.Context, p *iam.Principal, id uuid.UUID, value any) (*models.Job, error) {
	job, err := s.store.GetOwnedJob(ctx, p.ID, id)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, qerr.Validation(qerr.FieldErrors{"result": "Value is not JSON serializable."})
	}
	result := string(encoded)
	job.Result = &result

	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job result: %w", err)
	}
	return job, nil
}

// Logs returns the complete log text of a submitted job.
func (s *Service) Logs(ctx context.Context, p *iam.Principal, id uuid.UUID) (string, error) {
	job, runner, err := s.submittedJob(ctx, p, id)
	if err != nil {
		return "", err
	}
	return runner.Logs(ctx, job.RemoteJobID)
}

// Stop asks the cluster to stop a job and describes the outcome.
func (s *Service) Stop(ctx context.Context, p *iam.Principal, id uuid.UUID) (string, error) {
	job, runner, err := s.submittedJob(ctx, p, id)
	if err != nil {
		return "", err
	}

	alreadyStopped, err := runner.Stop(ctx, job.RemoteJobID)
	if err != nil {
		return "", err
	}
	if alreadyStopped {
		return MessageAlreadyStopped, nil
	}
	s.logger.Info("job stopped", "job_id", job.ID, "remote_job_id", job.RemoteJobID)
	return MessageStopped, nil
}

func (s *Service) submittedJob(ctx context.Context, p *iam.Principal, id uuid.UUID) (*models.Job, qrunner.Runner, error) {
	job, err := s.store.GetOwnedJob(ctx, p.ID, id)
	if err != nil {
		return nil, nil, err
	}
	if !job.Submitted() {
		return nil, nil, qerr.Newf(qerr.CodeNotSubmitted, "job %s has not been submitted to a compute resource", job.ID)
	}
	runner, err := s.runners.For(job.ComputeResource.Host)
	if err != nil {
		return nil, nil, err
	}
	return job, runner, nil
}
