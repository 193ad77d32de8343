package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/quatton/qgate/pkg/db"
	"github.com/quatton/qgate/pkg/kv"
	"github.com/quatton/qgate/pkg/qapi/utils"
	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qrunner"
)

type EnvConfig struct {
	Port            string `envconfig:"PORT" default:"3000"`
	SiteHost        string `envconfig:"SITE_HOST"`
	AuthSecret      string `envconfig:"AUTH_SECRET" required:"true"`
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	AccessTokenTTL  int    `envconfig:"ACCESS_TOKEN_TTL" default:"3600"`
	RefreshTokenTTL int    `envconfig:"REFRESH_TOKEN_TTL" default:"2592000"` // 30 days

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"qgate"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"password"`
	DBName     string `envconfig:"DB_NAME" default:"qgate"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	ValkeyAddr     string `envconfig:"VALKEY_ADDR" default:"localhost:6379"`
	ValkeyPassword string `envconfig:"VALKEY_PASSWORD"`
	ValkeyDB       int    `envconfig:"VALKEY_DB" default:"0"`

	// Artifacts go to S3 when S3_ENDPOINT is set, to MEDIA_ROOT otherwise.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"qgate"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`
	MediaRoot   string `envconfig:"MEDIA_ROOT" default:"./media"`

	JobRuntime           string `envconfig:"JOB_RUNTIME" default:"python"`
	RemoteRequestTimeout int    `envconfig:"REMOTE_REQUEST_TIMEOUT" default:"0"`
	K8sImage             string `envconfig:"K8S_IMAGE" default:"python:3.12-slim"`
	K8sQueue             string `envconfig:"K8S_QUEUE"`
	Kubeconfig           string `envconfig:"KUBECONFIG"`
	LocalRunsDir         string `envconfig:"LOCAL_RUNS_DIR" default:"./.qgate"`

	KeycloakURL             string `envconfig:"KEYCLOAK_URL"`
	KeycloakRealm           string `envconfig:"KEYCLOAK_REALM"`
	KeycloakClientID        string `envconfig:"KEYCLOAK_CLIENT_ID"`
	KeycloakClientSecret    string `envconfig:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakRequestsTimeout int    `envconfig:"KEYCLOAK_REQUESTS_TIMEOUT" default:"30"`
}

// ValidateEnv loads .env in development, then reads and validates the
// environment.
func ValidateEnv() (*EnvConfig, error) {
	if utils.IsDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}
	return Load()
}

// Load reads the environment without touching .env files.
func Load() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if errs := cfg.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return &cfg, nil
}

func (c *EnvConfig) validate() []string {
	var errors []string

	if len(c.AuthSecret) < 32 {
		errors = append(errors, "  ❌ AUTH_SECRET must be at least 32 characters")
	}

	if c.SiteHost != "" {
		if _, err := url.ParseRequestURI(c.SiteHost); err != nil {
			errors = append(errors, "  ❌ SITE_HOST must be a valid URL")
		}
	}

	if c.KeycloakURL != "" {
		if _, err := url.ParseRequestURI(c.KeycloakURL); err != nil {
			errors = append(errors, "  ❌ KEYCLOAK_URL must be a valid URL")
		}
	}

	if c.S3Endpoint != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		errors = append(errors, "  ❌ S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}

	if c.RemoteRequestTimeout < 0 {
		errors = append(errors, "  ❌ REMOTE_REQUEST_TIMEOUT must not be negative")
	}

	if c.KeycloakRequestsTimeout <= 0 {
		errors = append(errors, "  ❌ KEYCLOAK_REQUESTS_TIMEOUT must be positive")
	}

	if c.JobRuntime == "" {
		errors = append(errors, "  ❌ JOB_RUNTIME must not be empty")
	}

	return errors
}

func (c *EnvConfig) DB() db.Config {
	return db.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Database: c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

func (c *EnvConfig) Valkey() kv.ValkeyConfig {
	return kv.ValkeyConfig{
		Addr:     c.ValkeyAddr,
		Password: c.ValkeyPassword,
		DB:       c.ValkeyDB,
	}
}

func (c *EnvConfig) S3() qart.S3Config {
	return qart.S3Config{
		Endpoint:  c.S3Endpoint,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		UseSSL:    c.S3UseSSL,
	}
}

// Runners builds the compute backend settings. The metrics recorder is
// attached by the caller.
func (c *EnvConfig) Runners() qrunner.FactoryConfig {
	container := qrunner.DefaultContainerConfig()
	container.Image = c.K8sImage
	container.QueueName = c.K8sQueue

	return qrunner.FactoryConfig{
		RequestTimeout: time.Duration(c.RemoteRequestTimeout) * time.Second,
		Container:      container,
		Kubeconfig:     c.Kubeconfig,
		LocalRunsDir:   c.LocalRunsDir,
	}
}

func (c *EnvConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTL) * time.Second
}

func (c *EnvConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTL) * time.Second
}

func (c *EnvConfig) KeycloakTimeout() time.Duration {
	return time.Duration(c.KeycloakRequestsTimeout) * time.Second
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func orUnset(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Site Host: %s\n", orUnset(c.SiteHost))
	fmtr("  Auth Secret: %s\n", MaskSecret(c.AuthSecret))
	fmtr("  Database: %s@%s:%d/%s (sslmode=%s)\n", c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
	fmtr("  Valkey: %s (db %d)\n", c.ValkeyAddr, c.ValkeyDB)
	fmtr("  Refresh TTL: %ds\n", c.RefreshTokenTTL)

	if c.S3Endpoint != "" {
		fmtr("  Artifacts: s3://%s at %s\n", c.S3Bucket, c.S3Endpoint)
	} else {
		fmtr("  Artifacts: %s\n", c.MediaRoot)
	}

	fmtr("  Job runtime: %s\n", c.JobRuntime)
	if c.RemoteRequestTimeout > 0 {
		fmtr("  Remote timeout: %ds\n", c.RemoteRequestTimeout)
	} else {
		fmtr("  Remote timeout: none\n")
	}

	if c.KeycloakURL != "" && c.KeycloakRealm != "" {
		fmtr("  Keycloak: ✓ Enabled (%s, realm %s)\n", c.KeycloakURL, c.KeycloakRealm)
		fmtr("    Client ID: %s\n", orUnset(c.KeycloakClientID))
		fmtr("    Client Secret: %s\n", MaskSecret(c.KeycloakClientSecret))
	} else {
		fmtr("  Keycloak: ✗ Disabled\n")
	}
}
