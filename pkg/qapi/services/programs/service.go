// Package programs stores user programs and runs them on compute resources.
package programs

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qlog"
	"github.com/quatton/qgate/pkg/qrunner"
)

const (
	maxFieldLength = 255

	EnvGatewayToken = "ENV_JOB_GATEWAY_TOKEN"
	EnvGatewayHost  = "ENV_JOB_GATEWAY_HOST"
	EnvJobID        = "ENV_JOB_ID_GATEWAY"
	EnvArguments    = "ENV_JOB_ARGUMENTS"

	artifactContentType = "application/x-tar"
)

// Config is built once from the environment.
type Config struct {
	// Runtime is the interpreter invoked on the entrypoint, e.g. "python".
	Runtime string
	// SiteHost is handed to jobs so they can call back.
	SiteHost string
	// MediaRoot holds the per-request scratch directories.
	MediaRoot string
}

// RunnerFactory resolves a compute resource host to its backend.
type RunnerFactory interface {
	For(host string) (qrunner.Runner, error)
}

// Recorder observes submissions. *qmetrics.Metrics satisfies it.
type Recorder interface {
	RecordJobSubmitted(ctx context.Context, backend string)
	RecordSubmissionError(ctx context.Context, backend, stage string)
}

type Service struct {
	cfg       Config
	store     store.Store
	artifacts qart.Store
	runners   RunnerFactory
	recorder  Recorder
	logger    *qlog.Logger
}

func NewService(cfg Config, st store.Store, artifacts qart.Store, runners RunnerFactory, recorder Recorder, logger *qlog.Logger) *Service {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		artifacts: artifacts,
		runners:   runners,
		recorder:  recorder,
		logger:    logger,
	}
}

// Input is a program submission. Artifact is nil when no file was sent.
type Input struct {
	Title        string
	Entrypoint   string
	Arguments    string
	Dependencies string
	Artifact     io.Reader
	ArtifactSize int64
}

func (in Input) validate() error {
	fields := qerr.FieldErrors{}
	checkText := func(name, value string) {
		switch {
		case value == "":
			fields[name] = "This field is required."
		case utf8.RuneCountInString(value) > maxFieldLength:
			fields[name] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxFieldLength)
		}
	}
	checkText("title", in.Title)
	checkText("entrypoint", in.Entrypoint)

	switch {
	case in.Artifact == nil:
		fields["artifact"] = "No file was submitted."
	case in.ArtifactSize == 0:
		fields["artifact"] = "The submitted file is empty."
	}
	return qerr.Validation(fields)
}

// Create stores a new program without running it.
func (s *Service) Create(ctx context.Context, p *iam.Principal, in Input) (*models.Program, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	program := &models.Program{
		ID:           uuid.New(),
		OwnerID:      p.ID,
		Title:        in.Title,
		Entrypoint:   in.Entrypoint,
		Arguments:    in.Arguments,
		Dependencies: in.Dependencies,
	}
	if err := s.attachArtifact(ctx, program, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateProgram(ctx, program); err != nil {
		return nil, fmt.Errorf("saving program: %w", err)
	}
	return program, nil
}

func (s *Service) List(ctx context.Context, p *iam.Principal) ([]models.Program, error) {
	return s.store.ListPrograms(ctx, p.ID)
}

func (s *Service) Get(ctx context.Context, p *iam.Principal, id uuid.UUID) (*models.Program, error) {
	return s.store.GetProgram(ctx, p.ID, id)
}

// Run saves the program, keyed by (owner, title), and submits a job for it to
// the caller's first compute resource.
//
// Nothing here is transactional. A failure after the program is saved leaves
// the program in place, and a failure during submission leaves a job in the
// created state without a remote id.
func (s *Service) Run(ctx context.Context, p *iam.Principal, in Input) (*models.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	packages := ParseDependencies(in.Dependencies)

	program, existing, err := s.upsertFields(ctx, p, in)
	if err != nil {
		return nil, err
	}
	if err := s.attachArtifact(ctx, program, in); err != nil {
		return nil, err
	}
	if existing {
		err = s.store.UpdateProgram(ctx, program)
	} else {
		err = s.store.CreateProgram(ctx, program)
	}
	if err != nil {
		return nil, fmt.Errorf("saving program: %w", err)
	}

	resources, err := s.store.ResourcesForUser(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("listing compute resources: %w", err)
	}
	if len(resources) == 0 {
		return nil, qerr.Newf(qerr.CodeNoResources, "no compute resources available for this account")
	}
	resource := resources[0]
	backend := qrunner.Backend(resource.Host)

	runner, err := s.runners.For(resource.Host)
	if err != nil {
		s.recordError(ctx, backend, "backend")
		return nil, err
	}

	workdir, err := s.unpack(ctx, program)
	if err != nil {
		s.recordError(ctx, backend, "unpack")
		return nil, err
	}

	job := &models.Job{
		ID:                uuid.New(),
		ProgramID:         program.ID,
		OwnerID:           p.ID,
		Arguments:         program.Arguments,
		ComputeResourceID: uuid.NullUUID{UUID: resource.ID, Valid: true},
		Status:            models.JobStatusPending,
		SubmissionState:   models.SubmissionCreated,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		_ = qart.RemoveScratchDir(workdir)
		return nil, fmt.Errorf("saving job: %w", err)
	}
	job.ComputeResource = &resource

	remoteID, err := runner.Submit(ctx, qrunner.JobSpec{
		Entrypoint: s.cfg.Runtime + " " + program.Entrypoint,
		WorkingDir: workdir,
		Env: map[string]string{
			EnvGatewayToken: p.Token,
			EnvGatewayHost:  s.cfg.SiteHost,
			EnvJobID:        job.ID.String(),
			EnvArguments:    job.Arguments,
		},
		Packages: packages,
		Metadata: map[string]string{"job_id": job.ID.String(), "program": program.Title},
	})
	if err != nil {
		s.recordError(ctx, backend, "submit")
		_ = qart.RemoveScratchDir(workdir)
		s.logger.Error("job submission failed", "job_id", job.ID, "resource", resource.Title, "error", err)
		return nil, err
	}

	job.RemoteJobID = remoteID
	job.SubmissionState = models.SubmissionSubmitted
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("recording remote job id: %w", err)
	}

	if err := qart.RemoveScratchDir(workdir); err != nil {
		return nil, fmt.Errorf("removing working directory: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordJobSubmitted(ctx, backend)
	}
	s.logger.Info("job submitted", "job_id", job.ID, "remote_job_id", remoteID, "resource", resource.Title, "backend", backend)
	return job, nil
}

// upsertFields returns the caller's program with this title, updated in
// memory, or a new one. The bool reports whether it already existed.
func (s *Service) upsertFields(ctx context.Context, p *iam.Principal, in Input) (*models.Program, bool, error) {
	program, err := s.store.FindProgramByTitle(ctx, p.ID, in.Title)
	switch {
	case err == nil:
		program.Entrypoint = in.Entrypoint
		program.Arguments = in.Arguments
		program.Dependencies = in.Dependencies
		return program, true, nil
	case qerr.IsCode(err, qerr.CodeNotFound):
		return &models.Program{
			ID:           uuid.New(),
			OwnerID:      p.ID,
			Title:        in.Title,
			Entrypoint:   in.Entrypoint,
			Arguments:    in.Arguments,
			Dependencies: in.Dependencies,
		}, false, nil
	default:
		return nil, false, fmt.Errorf("looking up program: %w", err)
	}
}

func (s *Service) attachArtifact(ctx context.Context, program *models.Program, in Input) error {
	key := qart.ProgramArtifactKey(program.ID.String())
	if _, err := s.artifacts.Upload(ctx, key, in.Artifact, in.ArtifactSize, artifactContentType); err != nil {
		return fmt.Errorf("storing artifact: %w", err)
	}
	program.ArtifactKey = key
	return nil
}

// unpack extracts the program artifact into a fresh scratch directory.
func (s *Service) unpack(ctx context.Context, program *models.Program) (string, error) {
	rc, err := s.artifacts.Download(ctx, program.ArtifactKey)
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer rc.Close()

	dir, err := qart.NewScratchDir(s.cfg.MediaRoot)
	if err != nil {
		return "", err
	}
	if err := qart.Unpack(rc, dir); err != nil {
		_ = qart.RemoveScratchDir(dir)
		return "", fmt.Errorf("unpacking artifact: %w", err)
	}
	return dir, nil
}

func (s *Service) recordError(ctx context.Context, backend, stage string) {
	if s.recorder != nil {
		s.recorder.RecordSubmissionError(ctx, backend, stage)
	}
}
