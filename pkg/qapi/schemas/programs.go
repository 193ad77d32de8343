package schemas

import (
	"mime/multipart"
	"time"
)

// Program represents a stored program
type Program struct {
	ID           string    `json:"id" doc:"Program ID"`
	Title        string    `json:"title" doc:"Program title, unique per user by convention"`
	Entrypoint   string    `json:"entrypoint" doc:"Path of the file to execute, relative to the archive root"`
	Arguments    string    `json:"arguments" doc:"Opaque arguments passed to the job as ENV_JOB_ARGUMENTS"`
	Dependencies string    `json:"dependencies" doc:"JSON list of pip packages, as submitted"`
	Artifact     string    `json:"artifact,omitempty" doc:"Storage key of the program archive"`
	CreatedAt    time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt    time.Time `json:"updated_at" doc:"Last update timestamp"`
}

// ProgramForm is the multipart payload of program creation and run. Fields:
// title, entrypoint, arguments, dependencies and the artifact file.
type ProgramForm struct {
	RawBody multipart.Form
}

type ProgramResponse struct {
	Body Program
}

type GetProgramInput struct {
	ProgramID string `path:"programId" format:"uuid" doc:"Program ID"`
}

type ListProgramsResponse struct {
	Body struct {
		Count    int       `json:"count" doc:"Number of programs"`
		Programs []Program `json:"programs" doc:"Programs of the current user"`
	}
}
