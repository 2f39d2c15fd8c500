package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"time"

	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	files, err := fs.Glob(migrations.Postgres, "postgres/*.sql")
	if err != nil {
		logger.Fatalw("Failed to list migrations", "error", err)
	}
	sort.Strings(files)

	if *dryRun {
		logger.Info("Dry run mode - printing migration SQL without executing")
		for _, file := range files {
			content, err := fs.ReadFile(migrations.Postgres, file)
			if err != nil {
				logger.Fatalw("Failed to read migration", "file", file, "error", err)
			}
			fmt.Printf("-- %s\n%s\n", file, content)
		}
		return
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	for _, file := range files {
		content, err := fs.ReadFile(migrations.Postgres, file)
		if err != nil {
			logger.Fatalw("Failed to read migration", "file", file, "error", err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			logger.Fatalw("Failed to apply migration", "file", file, "error", err)
		}
		logger.Infow("Applied migration", "file", file)
	}

	logger.Info("Migration completed successfully")
}
