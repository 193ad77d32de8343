package migrations

import (
	"context"
	"fmt"

	"github.com/quatton/qgate/pkg/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [up migration] ")

		if _, err := db.NewRaw("CREATE SCHEMA IF NOT EXISTS gateway").Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateTable().
			Model((*models.Program)(nil)).
			IfNotExists().
			ForeignKey(`("owner_id") REFERENCES auth.users ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateTable().
			Model((*models.ComputeResource)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateTable().
			Model((*models.ComputeResourceUser)(nil)).
			IfNotExists().
			ForeignKey(`("compute_resource_id") REFERENCES gateway.compute_resources ("id") ON DELETE CASCADE`).
			ForeignKey(`("user_id") REFERENCES auth.users ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateTable().
			Model((*models.Job)(nil)).
			IfNotExists().
			ForeignKey(`("program_id") REFERENCES gateway.programs ("id") ON DELETE CASCADE`).
			ForeignKey(`("owner_id") REFERENCES auth.users ("id") ON DELETE CASCADE`).
			ForeignKey(`("compute_resource_id") REFERENCES gateway.compute_resources ("id") ON DELETE SET NULL`).
			Exec(ctx); err != nil {
			return err
		}

		// Title lookups happen on every run. Not unique: concurrent runs with a
		// new title may both insert.
		stmts := []string{
			"CREATE INDEX IF NOT EXISTS gateway_programs_owner_title_idx ON gateway.programs (owner_id, title)",
			"CREATE INDEX IF NOT EXISTS gateway_jobs_owner_idx ON gateway.jobs (owner_id)",
		}
		for _, stmt := range stmts {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [down migration] ")

		for _, model := range []any{
			(*models.Job)(nil),
			(*models.ComputeResourceUser)(nil),
			(*models.ComputeResource)(nil),
			(*models.Program)(nil),
		} {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		_, err := db.NewRaw("DROP SCHEMA IF EXISTS gateway").Exec(ctx)
		return err
	})
}
