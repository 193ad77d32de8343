package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JobStatus is the gateway's own job vocabulary. Remote cluster statuses are
// translated into it.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
	JobStatusUnknown   JobStatus = "unknown"
)

// SubmissionState tells a job that only exists locally apart from one the
// cluster accepted. A crash between saving the job and recording the remote id
// leaves the job in SubmissionCreated.
type SubmissionState string

const (
	SubmissionCreated   SubmissionState = "created"
	SubmissionSubmitted SubmissionState = "submitted"
)

// Program is a user-owned code bundle. Title is unique per owner by convention
// of the run workflow only; there is no database constraint.
type Program struct {
	bun.BaseModel `bun:"table:gateway.programs,alias:p"`

	ID           uuid.UUID `bun:"type:uuid,default:gen_random_uuid(),pk"`
	OwnerID      uuid.UUID `bun:"type:uuid,notnull"`
	Title        string    `bun:",notnull"`
	Entrypoint   string    `bun:",notnull"`
	Arguments    string    `bun:",notnull,default:''"`
	Dependencies string    `bun:",notnull,default:'[]'"`
	ArtifactKey  string    `bun:",nullzero"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// ComputeResource is a cluster endpoint. The host scheme selects the backend
// (http(s):// Ray, k8s://<namespace>, local://).
type ComputeResource struct {
	bun.BaseModel `bun:"table:gateway.compute_resources,alias:cr"`

	ID    uuid.UUID `bun:"type:uuid,default:gen_random_uuid(),pk"`
	Title string    `bun:",notnull"`
	Host  string    `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// ComputeResourceUser grants a user access to a compute resource.
type ComputeResourceUser struct {
	bun.BaseModel `bun:"table:gateway.compute_resource_users,alias:cru"`

	ComputeResourceID uuid.UUID `bun:"type:uuid,pk"`
	UserID            uuid.UUID `bun:"type:uuid,pk"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Job is one execution attempt of a Program on a compute resource.
type Job struct {
	bun.BaseModel `bun:"table:gateway.jobs,alias:j"`

	ID                uuid.UUID        `bun:"type:uuid,default:gen_random_uuid(),pk"`
	ProgramID         uuid.UUID        `bun:"type:uuid,notnull"`
	Program           *Program         `bun:"rel:belongs-to,join:program_id=id"`
	OwnerID           uuid.UUID        `bun:"type:uuid,notnull"`
	Arguments         string           `bun:",notnull,default:''"`
	ComputeResourceID uuid.NullUUID    `bun:"type:uuid"`
	ComputeResource   *ComputeResource `bun:"rel:belongs-to,join:compute_resource_id=id"`
	RemoteJobID       string           `bun:",nullzero"`
	Status            JobStatus        `bun:",notnull,default:'pending'"`
	SubmissionState   SubmissionState  `bun:",notnull,default:'created'"`
	Result            *string          `bun:"type:jsonb"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Submitted reports whether the cluster accepted the job.
func (j *Job) Submitted() bool {
	return j.ComputeResourceID.Valid && j.ComputeResource != nil && j.RemoteJobID != ""
}
