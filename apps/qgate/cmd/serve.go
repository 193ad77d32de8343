package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/kv"
	"github.com/quatton/qgate/pkg/qapi"
	"github.com/quatton/qgate/pkg/qapi/config"
	"github.com/quatton/qgate/pkg/qapi/routes"
	"github.com/quatton/qgate/pkg/qapi/services"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qapi/utils"
	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qlog"
	"github.com/quatton/qgate/pkg/qmetrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the gateway HTTP server",
	Long: `Runs the gateway. Configuration comes from the environment (and .env in
development): PostgreSQL, Valkey, artifact storage, Keycloak and runners.

With --memory nothing external is needed besides Keycloak: programs, jobs and
sessions live in memory and every --resource is granted to each user on
sign-in.`,
	Run: serve,
}

var (
	serveMemory    bool
	serveResources []string
	serveMetrics   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep all state in memory (development)")
	serveCmd.Flags().StringSliceVar(&serveResources, "resource", nil, "With --memory, compute resource host granted to every user (repeatable), e.g. local:// or k8s://default")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "Record metrics and serve them at /metrics")
}

func serve(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}
	cfg.Print(log.Printf)

	logger := qlog.ForEnvironment(utils.IsDev())

	backends, closeBackends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to initialize backends: %v", err)
	}
	defer closeBackends()

	var metricsHandler http.Handler
	if serveMetrics {
		backends.Metrics, metricsHandler, err = qmetrics.New()
		if err != nil {
			logger.Fatalf("failed to initialize metrics: %v", err)
		}
	}

	svcs := services.NewServices(cfg, backends, logger)

	api := qapi.NewApi(backends.Metrics, metricsHandler)
	api.Api.UseMiddleware(svcs.IAM.Middleware(logger.With("component", "iam")))
	routes.RegisterAPI(api.Api, svcs)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🚀 Gateway starting on %s\n", addr)
	log.Printf("📚 OpenAPI docs: http://localhost%s/docs\n", addr)
	log.Printf("📄 OpenAPI spec: http://localhost%s/openapi.json\n", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// openBackends connects the stateful dependencies. The returned func closes
// them.
func openBackends(ctx context.Context, cfg *config.EnvConfig, logger *qlog.Logger) (services.Backends, func(), error) {
	var b services.Backends
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if serveMemory {
		st, err := newDevStore(ctx, serveResources)
		if err != nil {
			return b, closeAll, err
		}
		b.Store = st
		b.KV = kv.NewMemoryStore()
		logger.Warn("running with in-memory state", "resources", len(serveResources))
	} else {
		database, err := db.New(ctx, cfg.DB())
		if err != nil {
			return b, closeAll, fmt.Errorf("database: %w", err)
		}
		closers = append(closers, func() { _ = database.Close() })
		b.Store = store.NewBunStore(database)

		valkey, err := kv.NewValkeyStore(ctx, cfg.Valkey())
		if err != nil {
			closeAll()
			return b, func() {}, fmt.Errorf("valkey: %w", err)
		}
		closers = append(closers, func() { _ = valkey.Close() })
		b.KV = valkey
	}

	var artifacts qart.Store
	if cfg.S3Endpoint != "" {
		s3, err := qart.NewS3Store(cfg.S3())
		if err != nil {
			closeAll()
			return b, func() {}, fmt.Errorf("s3: %w", err)
		}
		artifacts = s3
	} else {
		artifacts = qart.NewDiskStore(filepath.Join(cfg.MediaRoot, "artifacts"))
	}
	if err := artifacts.EnsureBucket(ctx); err != nil {
		closeAll()
		return b, func() {}, fmt.Errorf("artifact storage: %w", err)
	}
	b.Artifacts = artifacts

	return b, closeAll, nil
}

// devStore grants a fixed set of resources to every user that signs in.
type devStore struct {
	*store.MemoryStore
	resources []uuid.UUID
}

func newDevStore(ctx context.Context, hosts []string) (*devStore, error) {
	st := &devStore{MemoryStore: store.NewMemoryStore()}
	for i, host := range hosts {
		res := &models.ComputeResource{ID: uuid.New(), Title: fmt.Sprintf("dev-%d", i+1), Host: host}
		if err := st.CreateResource(ctx, res); err != nil {
			return nil, err
		}
		st.resources = append(st.resources, res.ID)
	}
	return st, nil
}

func (s *devStore) FindOrCreateUser(ctx context.Context, id store.Identity) (*models.User, error) {
	user, err := s.MemoryStore.FindOrCreateUser(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, resID := range s.resources {
		if err := s.GrantResource(ctx, resID, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}
