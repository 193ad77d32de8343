package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
	"github.com/quatton/qgate/pkg/qapi/services/jobs"
	"github.com/quatton/qgate/pkg/qlog"
)

func parseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, huma.Error404NotFound("job not found")
	}
	return id, nil
}

// RegisterJobs registers job-related routes
func RegisterJobs(api huma.API, svc *jobs.Service, iamSvc *iam.IAMService, logger *qlog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/api/jobs",
		Summary:       "Create a job",
		Description:   "Creates a job record for one of your programs without submitting it",
		Tags:          []string{TagJobs.String()},
		Security:      BearerAuth,
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *schemas.CreateJobInput) (*schemas.JobResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		programID, err := uuid.Parse(input.Body.ProgramID)
		if err != nil {
			return nil, huma.Error400BadRequest("program_id must be a UUID")
		}

		job, err := svc.Create(ctx, p, programID, input.Body.Arguments)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.JobResponse{Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/jobs",
		Summary:     "List jobs",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.ListJobsResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		list, err := svc.List(ctx, p)
		if err != nil {
			return nil, apiError(logger, err)
		}

		resp := &schemas.ListJobsResponse{}
		resp.Body.Jobs = make([]schemas.Job, 0, len(list))
		for i := range list {
			resp.Body.Jobs = append(resp.Body.Jobs, toJobResponse(&list[i]))
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{jobId}",
		Summary:     "Get a job",
		Description: "Returns the job with its status refreshed from the compute resource. Any authenticated caller can read any job by id.",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.GetJobInput) (*schemas.JobResponse, error) {
		if _, err := iamSvc.Require(ctx); err != nil {
			return nil, apiError(logger, err)
		}
		id, err := parseJobID(input.JobID)
		if err != nil {
			return nil, err
		}

		job, err := svc.Retrieve(ctx, id)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.JobResponse{Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-job-result",
		Method:      http.MethodPost,
		Path:        "/api/jobs/{jobId}/result",
		Summary:     "Report a job result",
		Description: "Stores any JSON value as the job result. Jobs call this with ENV_JOB_GATEWAY_TOKEN.",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.JobResultInput) (*schemas.JobResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		id, err := parseJobID(input.JobID)
		if err != nil {
			return nil, err
		}

		job, err := svc.Result(ctx, p, id, input.Body.Result)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.JobResponse{Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-logs",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{jobId}/logs",
		Summary:     "Get job logs",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.GetJobInput) (*schemas.JobLogsResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		id, err := parseJobID(input.JobID)
		if err != nil {
			return nil, err
		}

		logs, err := svc.Logs(ctx, p, id)
		if err != nil {
			return nil, apiError(logger, err)
		}
		resp := &schemas.JobLogsResponse{}
		resp.Body.Logs = logs
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-job",
		Method:      http.MethodPost,
		Path:        "/api/jobs/{jobId}/stop",
		Summary:     "Stop a job",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.GetJobInput) (*schemas.MessageResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		id, err := parseJobID(input.JobID)
		if err != nil {
			return nil, err
		}

		msg, err := svc.Stop(ctx, p, id)
		if err != nil {
			return nil, apiError(logger, err)
		}
		resp := &schemas.MessageResponse{}
		resp.Body.Message = msg
		return resp, nil
	})
}
