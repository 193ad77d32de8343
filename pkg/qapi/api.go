package qapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quatton/qgate/pkg/qmetrics"
)

type Api struct {
	Api    huma.API
	Router *chi.Mux
}

// Config returns the huma configuration of the gateway API.
func Config() huma.Config {
	config := huma.DefaultConfig("qgate Gateway", "1.0.0")
	config.Info.Description = "Uploads programs, runs them as jobs on compute resources and proxies job status, logs, stop and results."

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Access token from /api/auth/keycloak or /api/auth/keycloak-token",
		},
	}
	return config
}

// NewApi builds the router. When metrics is set, traffic is recorded and the
// registry is served at /metrics.
func NewApi(metrics *qmetrics.Metrics, metricsHandler http.Handler) *Api {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if metrics != nil {
		router.Use(metrics.Middleware)
		router.Handle("/metrics", metricsHandler)
	}

	api := humachi.New(router, Config())

	return &Api{Api: api, Router: router}
}
