package routes

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
	"github.com/quatton/qgate/pkg/qapi/services/programs"
	"github.com/quatton/qgate/pkg/qlog"
)

func formValue(form *multipart.Form, key string) string {
	if form == nil || len(form.Value[key]) == 0 {
		return ""
	}
	return form.Value[key][0]
}

// programInput reads the multipart fields. The returned closer releases the
// uploaded file.
func programInput(form *multipart.Form) (programs.Input, func(), error) {
	in := programs.Input{
		Title:        formValue(form, "title"),
		Entrypoint:   formValue(form, "entrypoint"),
		Arguments:    formValue(form, "arguments"),
		Dependencies: formValue(form, "dependencies"),
	}
	if in.Dependencies == "" {
		in.Dependencies = "[]"
	}

	closer := func() {}
	if form != nil && len(form.File["artifact"]) > 0 {
		fh := form.File["artifact"][0]
		f, err := fh.Open()
		if err != nil {
			return in, closer, err
		}
		in.Artifact = f
		in.ArtifactSize = fh.Size
		closer = func() { _ = f.Close() }
	}
	return in, closer, nil
}

func RegisterPrograms(api huma.API, svc *programs.Service, iamSvc *iam.IAMService, logger *qlog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-program",
		Method:        http.MethodPost,
		Path:          "/api/programs",
		Summary:       "Create a program",
		Description:   "Stores a program and its artifact without running it",
		Tags:          []string{TagPrograms.String()},
		Security:      BearerAuth,
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *schemas.ProgramForm) (*schemas.ProgramResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		in, done, err := programInput(&input.RawBody)
		defer done()
		if err != nil {
			return nil, apiError(logger, err)
		}

		program, err := svc.Create(ctx, p, in)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.ProgramResponse{Body: toProgramResponse(program)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-programs",
		Method:      http.MethodGet,
		Path:        "/api/programs",
		Summary:     "List programs",
		Tags:        []string{TagPrograms.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.ListProgramsResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		list, err := svc.List(ctx, p)
		if err != nil {
			return nil, apiError(logger, err)
		}

		resp := &schemas.ListProgramsResponse{}
		resp.Body.Programs = make([]schemas.Program, 0, len(list))
		for i := range list {
			resp.Body.Programs = append(resp.Body.Programs, toProgramResponse(&list[i]))
		}
		resp.Body.Count = len(resp.Body.Programs)
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-program",
		Method:      http.MethodGet,
		Path:        "/api/programs/{programId}",
		Summary:     "Get a program",
		Tags:        []string{TagPrograms.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.GetProgramInput) (*schemas.ProgramResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		id, err := uuid.Parse(input.ProgramID)
		if err != nil {
			return nil, huma.Error404NotFound("program not found")
		}

		program, err := svc.Get(ctx, p, id)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.ProgramResponse{Body: toProgramResponse(program)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-program",
		Method:      http.MethodPost,
		Path:        "/api/programs/run",
		Summary:     "Run a program",
		Description: "Saves the program under its title, replacing an existing one, and submits a job to the first compute resource of the caller",
		Tags:        []string{TagPrograms.String(), TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.ProgramForm) (*schemas.JobResponse, error) {
		p, err := iamSvc.Require(ctx)
		if err != nil {
			return nil, apiError(logger, err)
		}
		in, done, err := programInput(&input.RawBody)
		defer done()
		if err != nil {
			return nil, apiError(logger, err)
		}

		job, err := svc.Run(ctx, p, in)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.JobResponse{Body: toJobResponse(job)}, nil
	})
}
