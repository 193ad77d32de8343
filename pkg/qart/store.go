// Package qart stores program artifacts and turns them into working
// directories: blob storage (S3-compatible or local disk), tar extraction into
// per-request scratch directories, and re-packing of a directory for backends
// that ship code themselves.
package qart

import (
	"context"
	"io"
	"time"
)

// Artifact describes a stored blob.
type Artifact struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// Store is blob storage for program artifacts.
type Store interface {
	// Upload stores reader under key. size may be -1 when unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Artifact, error)

	// Download returns ErrNotFound when key does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error

	// EnsureBucket prepares the backing storage, creating it if necessary.
	EnsureBucket(ctx context.Context) error
}

// ProgramArtifactKey is where a program's archive lives. The key only depends
// on the program, so re-running an existing title replaces the blob in place.
func ProgramArtifactKey(programID string) string {
	return "programs/" + programID + "/artifact.tar"
}
