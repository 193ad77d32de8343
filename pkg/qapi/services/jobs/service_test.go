package jobs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qrunner"
)

type stubRunner struct {
	status         qrunner.Status
	logs           string
	alreadyStopped bool
	stopped        []string
}

func (r *stubRunner) Submit(context.Context, qrunner.JobSpec) (string, error) {
	return "remote-1", nil
}

func (r *stubRunner) Status(context.Context, string) (qrunner.Status, error) {
	return r.status, nil
}

func (r *stubRunner) Logs(context.Context, string) (string, error) { return r.logs, nil }

func (r *stubRunner) Stop(_ context.Context, id string) (bool, error) {
	r.stopped = append(r.stopped, id)
	return r.alreadyStopped, nil
}

type stubFactory struct{ runner *stubRunner }

func (f stubFactory) For(string) (qrunner.Runner, error) { return f.runner, nil }

type fixture struct {
	svc       *Service
	store     *store.MemoryStore
	runner    *stubRunner
	principal *iam.Principal
	program   *models.Program
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	ownerID := uuid.New()
	program := &models.Program{OwnerID: ownerID, Title: "t1", Entrypoint: "main.py", Arguments: "--x=1", Dependencies: "[]"}
	if err := st.CreateProgram(ctx, program); err != nil {
		t.Fatal(err)
	}

	runner := &stubRunner{status: qrunner.StatusRunning}
	return &fixture{
		svc:       NewService(st, stubFactory{runner: runner}, nil),
		store:     st,
		runner:    runner,
		principal: &iam.Principal{ID: ownerID, Token: "tok"},
		program:   program,
	}
}

// submittedJob stores a job the cluster has accepted.
func (f *fixture) submittedJob(t *testing.T, status models.JobStatus) *models.Job {
	t.Helper()
	ctx := context.Background()

	res := &models.ComputeResource{Title: "ray-1", Host: "http://ray-head:8265"}
	if err := f.store.CreateResource(ctx, res); err != nil {
		t.Fatal(err)
	}
	job := &models.Job{
		ProgramID:         f.program.ID,
		OwnerID:           f.principal.ID,
		ComputeResourceID: uuid.NullUUID{UUID: res.ID, Valid: true},
		RemoteJobID:       "raysubmit_abc",
		Status:            status,
		SubmissionState:   models.SubmissionSubmitted,
	}
	if err := f.store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestRetrieveRefreshesStatus(t *testing.T) {
	f := newFixture(t)
	job := f.submittedJob(t, models.JobStatusPending)
	f.runner.status = qrunner.StatusSucceeded

	got, err := f.svc.Retrieve(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Status != models.JobStatusSucceeded {
		t.Fatalf("status = %s", got.Status)
	}

	stored, _ := f.store.GetJob(context.Background(), job.ID)
	if stored.Status != models.JobStatusSucceeded {
		t.Fatalf("refreshed status not persisted: %s", stored.Status)
	}
}

func TestRetrieveUnrecognisedStatus(t *testing.T) {
	f := newFixture(t)
	job := f.submittedJob(t, models.JobStatusRunning)
	f.runner.status = "DRAINING"

	got, err := f.svc.Retrieve(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Status != models.JobStatusUnknown {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestRetrieveUnsubmittedJobIsReadAsStored(t *testing.T) {
	f := newFixture(t)
	job, err := f.svc.Create(context.Background(), f.principal, f.program.ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.runner.status = qrunner.StatusFailed

	got, err := f.svc.Retrieve(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Status != models.JobStatusPending || got.Arguments != "--x=1" {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestRetrieveIsNotOwnerScoped(t *testing.T) {
	f := newFixture(t)
	job := f.submittedJob(t, models.JobStatusPending)

	// Any caller holding the id can read the job.
	if _, err := f.svc.Retrieve(context.Background(), job.ID); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if _, err := f.svc.Retrieve(context.Background(), uuid.New()); !qerr.IsCode(err, qerr.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestResultStoresJSON(t *testing.T) {
	f := newFixture(t)
	job := f.submittedJob(t, models.JobStatusRunning)
	ctx := context.Background()

	got, err := f.svc.Result(ctx, f.principal, job.ID, map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if got.Result == nil || *got.Result != `{"ok":true}` {
		t.Fatalf("result = %v", got.Result)
	}

	got, err = f.svc.Result(ctx, f.principal, job.ID, nil)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if *got.Result != "null" {
		t.Fatalf("absent result stored as %q", *got.Result)
	}

	stranger := &iam.Principal{ID: uuid.New()}
	if _, err := f.svc.Result(ctx, stranger, job.ID, 1); !qerr.IsCode(err, qerr.CodeNotFound) {
		t.Fatalf("expected not_found for another user, got %v", err)
	}
}

func TestStopMessages(t *testing.T) {
	tests := []struct {
		name           string
		alreadyStopped bool
		want           string
	}{
		{"running job", false, MessageStopped},
		{"terminal job", true, MessageAlreadyStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.submittedJob(t, models.JobStatusRunning)
			f.runner.alreadyStopped = tt.alreadyStopped

			msg, err := f.svc.Stop(context.Background(), f.principal, job.ID)
			if err != nil {
				t.Fatalf("stop: %v", err)
			}
			if msg != tt.want {
				t.Fatalf("message = %q, want %q", msg, tt.want)
			}
			if len(f.runner.stopped) != 1 || f.runner.stopped[0] != "raysubmit_abc" {
				t.Fatalf("stop sent for %v", f.runner.stopped)
			}
		})
	}
}

func TestLogsAndStopRequireSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, err := f.svc.Create(ctx, f.principal, f.program.ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Logs(ctx, f.principal, job.ID); !qerr.IsCode(err, qerr.CodeNotSubmitted) {
		t.Fatalf("logs: expected not_submitted, got %v", err)
	}
	if _, err := f.svc.Stop(ctx, f.principal, job.ID); !qerr.IsCode(err, qerr.CodeNotSubmitted) {
		t.Fatalf("stop: expected not_submitted, got %v", err)
	}
}

func TestLogs(t *testing.T) {
	f := newFixture(t)
	job := f.submittedJob(t, models.JobStatusRunning)
	f.runner.logs = "line 1\nline 2\n"

	logs, err := f.svc.Logs(context.Background(), f.principal, job.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if logs != "line 1\nline 2\n" {
		t.Fatalf("logs = %q", logs)
	}
}

func TestCreateRejectsForeignProgram(t *testing.T) {
	f := newFixture(t)
	stranger := &iam.Principal{ID: uuid.New()}

	_, err := f.svc.Create(context.Background(), stranger, f.program.ID, "")
	if !qerr.IsCode(err, qerr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := qerr.Fields(err)["program_id"]; !ok {
		t.Fatalf("fields = %v", qerr.Fields(err))
	}
}
