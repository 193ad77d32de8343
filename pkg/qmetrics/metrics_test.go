package qmetrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m, handler, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/jobs/{jobId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	}

	out := scrape(t, handler)
	if !strings.Contains(out, `route="/api/jobs/{jobId}"`) {
		t.Fatalf("route pattern missing from metrics:\n%s", out)
	}
	if !strings.Contains(out, `status="4xx"`) {
		t.Fatalf("status group missing from metrics:\n%s", out)
	}
	if strings.Contains(out, `route="/api/jobs/a"`) {
		t.Fatal("raw path leaked into labels")
	}
}

func TestRecordRemoteCall(t *testing.T) {
	m, handler, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	m.RecordRemoteCall(ctx, "ray", "submit", nil)
	m.RecordRemoteCall(ctx, "ray", "status", errors.New("boom"))
	m.RecordJobSubmitted(ctx, "ray")

	out := scrape(t, handler)
	for _, want := range []string{"remote_calls_total", `outcome="error"`, "jobs_submitted_total"} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	if _, _, err := New(); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, _, err := New(); err != nil {
		t.Fatalf("second New should not clash: %v", err)
	}
}
