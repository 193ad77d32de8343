// Package qerr carries a stable error category alongside the underlying error so
// HTTP handlers can pick a status code without knowing which collaborator failed.
package qerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code represents a stable error category that callers can switch on.
type Code string

const (
	CodeUnknown       Code = "unknown"
	CodeValidation    Code = "validation"
	CodeNotFound      Code = "not_found"
	CodeNoResources   Code = "no_resources"
	CodeNotSubmitted  Code = "not_submitted"
	CodeUpstream      Code = "upstream"
	CodeNotConfigured Code = "not_configured"
	CodeUnauthorized  Code = "unauthorized"
)

// Error is a simple value type that carries a Code plus the underlying error.
type Error struct {
	Code Code
	err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// New wraps an error with the provided code. If err is nil a nil is returned.
func New(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, err: err}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, err: fmt.Errorf(format, args...)}
}

// CodeOf returns the first Code found in the chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode helps callers compare codes without type assertions.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// FieldErrors maps a request field to what is wrong with it.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// Validation returns nil when fields is empty.
func Validation(fields FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Code: CodeValidation, err: fields}
}

// Fields extracts the field errors of a validation error.
func Fields(err error) FieldErrors {
	var f FieldErrors
	if errors.As(err, &f) {
		return f
	}
	return nil
}

// UpstreamError is a non-success answer from an HTTP collaborator. Body is kept
// verbatim so it can be surfaced to the caller untouched.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// Upstream wraps a raw upstream response.
func Upstream(status int, body string) error {
	return &Error{Code: CodeUpstream, err: &UpstreamError{Status: status, Body: body}}
}

// UpstreamBody returns the raw body of an upstream error.
func UpstreamBody(err error) (string, bool) {
	var u *UpstreamError
	if errors.As(err, &u) {
		return u.Body, true
	}
	return "", false
}

// Message is the text of err without the code prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.err != nil {
		return e.err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
