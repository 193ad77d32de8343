package schemas

import (
	"encoding/json"
	"time"
)

// Job represents a job as stored by the gateway
type Job struct {
	ID              string          `json:"id" doc:"Job ID"`
	ProgramID       string          `json:"program_id" doc:"Program the job was started from"`
	Arguments       string          `json:"arguments" doc:"Arguments copied from the program"`
	Status          string          `json:"status" doc:"Job status" enum:"pending,running,succeeded,failed,stopped,unknown"`
	SubmissionState string          `json:"submission_state" doc:"created until the compute resource accepts the job, then submitted" enum:"created,submitted"`
	ComputeResource string          `json:"compute_resource,omitempty" doc:"Title of the compute resource"`
	RemoteJobID     string          `json:"remote_job_id,omitempty" doc:"Job id on the compute resource"`
	Result          json.RawMessage `json:"result" doc:"Result reported by the job, null until reported"`
	CreatedAt       time.Time       `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt       time.Time       `json:"updated_at" doc:"Last update timestamp"`
}

type JobResponse struct {
	Body Job
}

type GetJobInput struct {
	JobID string `path:"jobId" format:"uuid" doc:"Job ID"`
}

type CreateJobInput struct {
	Body struct {
		ProgramID string `json:"program_id" format:"uuid" doc:"Program to attach the job to"`
		Arguments string `json:"arguments,omitempty" required:"false" doc:"Arguments; defaults to the program's"`
	}
}

type ListJobsResponse struct {
	Body struct {
		Jobs []Job `json:"jobs" doc:"Jobs of the current user"`
	}
}

type JobResultInput struct {
	JobID string `path:"jobId" format:"uuid" doc:"Job ID"`
	// Keys other than result are accepted and ignored.
	Body struct {
		_      struct{} `json:"-" additionalProperties:"true"`
		Result any      `json:"result,omitempty" required:"false" doc:"Any JSON value"`
	} `required:"false"`
}

type JobLogsResponse struct {
	Body struct {
		Logs string `json:"logs" doc:"Complete job logs"`
	}
}
