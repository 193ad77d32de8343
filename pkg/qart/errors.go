package qart

import "errors"

var (
	ErrNotFound      = errors.New("artifact not found")
	ErrUnsafePath    = errors.New("archive entry escapes destination")
	ErrBucketMissing = errors.New("bucket does not exist")
)
