// Package qmetrics exposes gateway metrics through an OpenTelemetry meter
// backed by a Prometheus exporter.
package qmetrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter

	JobsSubmitted    metric.Int64Counter
	SubmissionErrors metric.Int64Counter
	RemoteCallsTotal metric.Int64Counter
}

// New registers all instruments on a private registry and returns the
// handler serving it.
func New() (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("qgate")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter(
		"jobs_submitted_total",
		metric.WithDescription("Jobs accepted by a compute backend"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionErrors, err = meter.Int64Counter(
		"job_submission_errors_total",
		metric.WithDescription("Run requests that failed after validation"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RemoteCallsTotal, err = meter.Int64Counter(
		"remote_calls_total",
		metric.WithDescription("Calls made to compute backends"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", fmt.Sprintf("%dxx", statusCode/100)),
	)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordJobSubmitted(ctx context.Context, backend string) {
	m.JobsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordSubmissionError counts a failed run; stage names the step that failed.
func (m *Metrics) RecordSubmissionError(ctx context.Context, backend, stage string) {
	m.SubmissionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("stage", stage),
	))
}

// RecordRemoteCall satisfies qrunner.CallRecorder.
func (m *Metrics) RecordRemoteCall(ctx context.Context, backend, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RemoteCallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// Middleware records traffic and latency per chi route pattern, so ids in
// paths do not blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Context(), r.Method, route, status, time.Since(start))
	})
}
