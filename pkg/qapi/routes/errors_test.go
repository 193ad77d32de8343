package routes

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qrunner"
)

func TestAPIErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", qerr.Validation(qerr.FieldErrors{"title": "This field is required."}), http.StatusBadRequest},
		{"no resources", qerr.Newf(qerr.CodeNoResources, "none"), http.StatusBadRequest},
		{"not found", qerr.Newf(qerr.CodeNotFound, "job not found"), http.StatusNotFound},
		{"not submitted", qerr.Newf(qerr.CodeNotSubmitted, "nope"), http.StatusConflict},
		{"unauthorized", qerr.Newf(qerr.CodeUnauthorized, "who"), http.StatusUnauthorized},
		{"upstream", qerr.Upstream(401, "raw"), http.StatusBadRequest},
		{"not configured", qerr.Newf(qerr.CodeNotConfigured, "Oops."), http.StatusNotImplemented},
		{"remote cluster", &qrunner.RemoteError{Op: "status", Status: 502, Body: "bad gateway"}, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apiError(nil, tt.err)
			var se huma.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("%T is not a status error", err)
			}
			if se.GetStatus() != tt.want {
				t.Fatalf("status = %d, want %d", se.GetStatus(), tt.want)
			}
		})
	}
}

func TestAPIErrorUpstreamKeepsRawBody(t *testing.T) {
	err := apiError(nil, qerr.Upstream(401, `{"error":"invalid_grant"}`))

	var me *MessageError
	if !errors.As(err, &me) || me.Message != `{"error":"invalid_grant"}` {
		t.Fatalf("unexpected error %#v", err)
	}
}
