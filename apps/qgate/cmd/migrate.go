package cmd

import (
	"context"
	"log"

	"github.com/quatton/qgate/pkg/db"
	"github.com/quatton/qgate/pkg/qapi/config"
	"github.com/quatton/qgate/pkg/qlog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		withDatabase(func(ctx context.Context, database *bun.DB, logger *qlog.Logger) error {
			return db.Migrate(ctx, database, logger)
		})
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo the last migration group",
	Run: func(cmd *cobra.Command, args []string) {
		withDatabase(func(ctx context.Context, database *bun.DB, logger *qlog.Logger) error {
			return db.Rollback(ctx, database, logger)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(rollbackCmd)
}

// withDatabase opens the database described by the environment and runs fn.
func withDatabase(fn func(ctx context.Context, database *bun.DB, logger *qlog.Logger) error) {
	ctx := context.Background()
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	database, err := db.New(ctx, cfg.DB())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := fn(ctx, database, qlog.NewDefault()); err != nil {
		log.Fatalf("%v", err)
	}
}
