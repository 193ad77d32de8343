package routes

import (
	"encoding/json"

	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qapi/schemas"
)

func toProgramResponse(p *models.Program) schemas.Program {
	return schemas.Program{
		ID:           p.ID.String(),
		Title:        p.Title,
		Entrypoint:   p.Entrypoint,
		Arguments:    p.Arguments,
		Dependencies: p.Dependencies,
		Artifact:     p.ArtifactKey,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toJobResponse(j *models.Job) schemas.Job {
	out := schemas.Job{
		ID:              j.ID.String(),
		ProgramID:       j.ProgramID.String(),
		Arguments:       j.Arguments,
		Status:          string(j.Status),
		SubmissionState: string(j.SubmissionState),
		RemoteJobID:     j.RemoteJobID,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
	if j.ComputeResource != nil {
		out.ComputeResource = j.ComputeResource.Title
	}
	if j.Result != nil {
		out.Result = json.RawMessage(*j.Result)
	}
	return out
}
