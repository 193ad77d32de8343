package main

import (
	"context"
	"flag"
	"log"

	"github.com/quatton/qgate/pkg/db"
	"github.com/quatton/qgate/pkg/qapi/config"
	"github.com/quatton/qgate/pkg/qlog"
)

func main() {
	rollback := flag.Bool("rollback", false, "undo the last migration group instead of migrating")
	flag.Parse()

	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	ctx := context.Background()
	database, err := db.New(ctx, cfg.DB())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	logger := qlog.NewDefault()
	if *rollback {
		log.Println("Rolling back...")
		err = db.Rollback(ctx, database, logger)
	} else {
		log.Println("Running migrations...")
		err = db.Migrate(ctx, database, logger)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Println("Done.")
}
