package services

import (
	"github.com/quatton/qgate/pkg/kv"
	"github.com/quatton/qgate/pkg/qapi/config"
	"github.com/quatton/qgate/pkg/qapi/services/authconfig"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
	"github.com/quatton/qgate/pkg/qapi/services/identity"
	"github.com/quatton/qgate/pkg/qapi/services/jobs"
	"github.com/quatton/qgate/pkg/qapi/services/programs"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qlog"
	"github.com/quatton/qgate/pkg/qmetrics"
	"github.com/quatton/qgate/pkg/qrunner"
)

type Services struct {
	Store    store.Store
	Auth     *authconfig.AuthService
	IAM      *iam.IAMService
	Identity *identity.Bridge
	Programs *programs.Service
	Jobs     *jobs.Service
	Runners  *qrunner.Factory
	Logger   *qlog.Logger
}

// Backends are the stateful dependencies, opened by the caller.
type Backends struct {
	Store     store.Store
	KV        kv.Store
	Artifacts qart.Store
	// Metrics is optional.
	Metrics *qmetrics.Metrics
}

func NewServices(cfg *config.EnvConfig, b Backends, logger *qlog.Logger) *Services {
	if logger == nil {
		logger = qlog.NewDiscard()
	}

	runnersCfg := cfg.Runners()
	var recorder programs.Recorder
	if b.Metrics != nil {
		runnersCfg.Recorder = b.Metrics
		recorder = b.Metrics
	}
	runners := qrunner.NewFactory(runnersCfg, logger.With("component", "runner"))

	authSvc := authconfig.NewAuthService(AuthConfig(cfg), b.Store, b.KV, logger.With("component", "auth"))

	return &Services{
		Store:    b.Store,
		Auth:     authSvc,
		IAM:      iam.NewIAMService(authSvc),
		Identity: identity.NewBridge(IdentityConfig(cfg), logger.With("component", "identity")),
		Programs: programs.NewService(ProgramsConfig(cfg), b.Store, b.Artifacts, runners, recorder, logger.With("component", "programs")),
		Jobs:     jobs.NewService(b.Store, runners, logger.With("component", "jobs")),
		Runners:  runners,
		Logger:   logger,
	}
}

func AuthConfig(cfg *config.EnvConfig) authconfig.Config {
	return authconfig.Config{
		Secret:        cfg.AuthSecret,
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
		KeycloakURL:   cfg.KeycloakURL,
		KeycloakRealm: cfg.KeycloakRealm,
		Timeout:       cfg.KeycloakTimeout(),
	}
}

func IdentityConfig(cfg *config.EnvConfig) identity.Config {
	return identity.Config{
		KeycloakURL:   cfg.KeycloakURL,
		KeycloakRealm: cfg.KeycloakRealm,
		ClientID:      cfg.KeycloakClientID,
		ClientSecret:  cfg.KeycloakClientSecret,
		SiteHost:      cfg.SiteHost,
		Timeout:       cfg.KeycloakTimeout(),
	}
}

func ProgramsConfig(cfg *config.EnvConfig) programs.Config {
	return programs.Config{
		Runtime:   cfg.JobRuntime,
		SiteHost:  cfg.SiteHost,
		MediaRoot: cfg.MediaRoot,
	}
}
