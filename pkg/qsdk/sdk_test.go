package qsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/zalando/go-keyring"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "8f1d2c7e-0000-4000-8000-000000000001",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return tok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginStoresSession(t *testing.T) {
	keyring.MockInit()
	access := signedToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/keycloak-token":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "pw" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": `{"error":"invalid_grant"}`})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  access,
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"user":          map[string]string{"login": "alice"},
			})
		case "/api/me":
			if r.Header.Get("Authorization") != "Bearer "+access {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Authentication required"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"login": "alice"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sdk := NewSdk(&Config{BaseURL: srv.URL})
	ctx := context.Background()

	if _, err := sdk.Login(ctx, "alice", "wrong"); !qerr.IsCode(err, qerr.CodeValidation) {
		t.Fatalf("expected validation error for a bad password, got %v", err)
	}

	session, err := sdk.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.User.Login != "alice" {
		t.Fatalf("unexpected user %+v", session.User)
	}

	stored, refresh := LoadTokens(srv.URL)
	if stored != access || refresh != "refresh-1" {
		t.Fatalf("tokens not stored: %q/%q", stored, refresh)
	}

	me, err := NewSdk(&Config{BaseURL: srv.URL}).Me(ctx)
	if err != nil {
		t.Fatalf("me with stored token: %v", err)
	}
	if me.Login != "alice" {
		t.Fatalf("unexpected me %+v", me)
	}
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	keyring.MockInit()
	fresh := signedToken(t, time.Now().Add(time.Hour))
	var refreshed atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			var in struct {
				RefreshToken string `json:"refresh_token"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.RefreshToken != "refresh-old" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid refresh token"})
				return
			}
			refreshed.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"access_token": fresh, "refresh_token": "refresh-new"})
		case "/api/jobs":
			if r.Header.Get("Authorization") != "Bearer "+fresh {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Authentication required"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"jobs": []map[string]string{{"id": "j1", "status": "running"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sdk := NewSdk(&Config{BaseURL: srv.URL}, WithTokens(signedToken(t, time.Now().Add(-time.Minute)), "refresh-old"))

	jobs, err := sdk.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != "running" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if refreshed.Load() != 1 || sdk.RefreshToken != "refresh-new" {
		t.Fatalf("refresh count %d, token %q", refreshed.Load(), sdk.RefreshToken)
	}
}

func TestMissingCredentials(t *testing.T) {
	keyring.MockInit()
	sdk := NewSdk(&Config{BaseURL: "http://127.0.0.1:1"}, WithTokens("", ""))
	if _, err := sdk.Me(context.Background()); !qerr.IsCode(err, qerr.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRunProgramSendsMultipart(t *testing.T) {
	keyring.MockInit()
	access := signedToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/programs/run" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("title"); got != "bell" {
			t.Errorf("title %q", got)
		}
		if got := r.FormValue("dependencies"); got != `["qiskit"]` {
			t.Errorf("dependencies %q", got)
		}
		f, _, err := r.FormFile("artifact")
		if err != nil {
			t.Errorf("artifact: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if string(data) != "archive-bytes" {
				t.Errorf("artifact content %q", data)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "job-1", "status": "pending", "submission_state": "submitted"})
	}))
	defer srv.Close()

	sdk := NewSdk(&Config{BaseURL: srv.URL}, WithTokens(access, ""))
	job, err := sdk.RunProgram(context.Background(), ProgramUpload{
		Title:        "bell",
		Entrypoint:   "main.py",
		Dependencies: []string{"qiskit"},
		Artifact:     strings.NewReader("archive-bytes"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.ID != "job-1" || job.SubmissionState != "submitted" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   qerr.Code
		msg    string
	}{
		{"conflict", http.StatusConflict, `{"title":"Conflict","detail":"job was never submitted"}`, qerr.CodeNotSubmitted, "job was never submitted"},
		{"not found", http.StatusNotFound, `{"detail":"job not found"}`, qerr.CodeNotFound, "job not found"},
		{"not configured", http.StatusNotImplemented, `{"message":"Oops."}`, qerr.CodeNotConfigured, "Oops."},
		{"field errors", http.StatusBadRequest, `{"detail":"validation failed","errors":[{"message":"This field is required.","location":"body.title"}]}`, qerr.CodeValidation, "validation failed; body.title: This field is required."},
		{"server error", http.StatusInternalServerError, "boom", qerr.CodeUpstream, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := responseError(tt.status, []byte(tt.body))
			if !qerr.IsCode(err, tt.code) {
				t.Fatalf("code %s, want %s", qerr.CodeOf(err), tt.code)
			}
			if tt.code == qerr.CodeUpstream {
				body, _ := qerr.UpstreamBody(err)
				if body != tt.msg {
					t.Fatalf("body %q, want %q", body, tt.msg)
				}
				return
			}
			if got := qerr.Message(err); got != tt.msg {
				t.Fatalf("message %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestUnauthorizedClearsCredentials(t *testing.T) {
	keyring.MockInit()
	access := signedToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Authentication required"})
	}))
	defer srv.Close()

	sdk := NewSdk(&Config{BaseURL: srv.URL}, WithTokens(access, "refresh"))
	if _, err := sdk.StopJob(context.Background(), "j1"); !qerr.IsCode(err, qerr.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if sdk.Token != "" || sdk.RefreshToken != "" {
		t.Fatal("credentials kept after 401")
	}
}
