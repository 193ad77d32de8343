package qerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewNilPassthrough(t *testing.T) {
	if New(CodeNotFound, nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestCodeOfWrapped(t *testing.T) {
	base := Newf(CodeNoResources, "no compute resources available for this account")
	wrapped := fmt.Errorf("run program: %w", base)

	if CodeOf(wrapped) != CodeNoResources {
		t.Fatalf("expected no_resources, got %s", CodeOf(wrapped))
	}
	if !IsCode(wrapped, CodeNoResources) {
		t.Fatal("IsCode should see through fmt wrapping")
	}
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors should be unknown")
	}
}

func TestValidationFields(t *testing.T) {
	if Validation(FieldErrors{}) != nil {
		t.Fatal("empty field set should not produce an error")
	}

	err := Validation(FieldErrors{"title": "This field is required.", "artifact": "No file was submitted."})
	if !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation code, got %v", err)
	}

	fields := Fields(err)
	if fields["title"] != "This field is required." {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if got := fields.Error(); got != "artifact: No file was submitted.; title: This field is required." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUpstreamBody(t *testing.T) {
	err := Upstream(401, `{"error":"invalid_grant"}`)
	if !IsCode(err, CodeUpstream) {
		t.Fatalf("expected upstream code, got %v", err)
	}
	body, ok := UpstreamBody(err)
	if !ok || body != `{"error":"invalid_grant"}` {
		t.Fatalf("body not preserved: %q", body)
	}
}

func TestMessageDropsCode(t *testing.T) {
	err := fmt.Errorf("stop: %w", Newf(CodeNotSubmitted, "job %d has no remote id", 7))
	if got := Message(err); got != "job 7 has no remote id" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected message %q", got)
	}
}
