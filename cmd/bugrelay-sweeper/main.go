package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
	"github.com/igmrrf/bugrelay-sub004/pkg/revocation"
)

var (
	dbURL    = flag.String("db-url", getEnv("BUGRELAY_DATABASE_URL", "postgres://localhost/bugrelay?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "*/15 * * * *", "Cron schedule for revocation sweeps (default: every 15 minutes)")
	logLevel = flag.String("log-level", getEnv("BUGRELAY_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	runOnce  = flag.Bool("run-once", false, "Run one sweep and exit")
)

// The sweeper prunes expired rows from the revocation ledger. It talks
// only to PostgreSQL: redis entries carry TTLs and expire on their own.
func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.ParseLevel(*logLevel), os.Stdout)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(1)
	}

	store, err := revocation.NewStore(db, nil, logger, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize revocation store")
		os.Exit(1)
	}

	if *runOnce {
		if err := sweep(store, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() {
		sweep(store, logger)
	}); err != nil {
		logger.WithError(err).Errorf("Failed to schedule sweep %q", *schedule)
		os.Exit(1)
	}

	c.Start()
	logger.Infof("Revocation sweeper started, schedule %q", *schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	<-c.Stop().Done()
}

func sweep(store *revocation.Store, logger *observability.Logger) error {
	deleted, err := store.Sweep(context.Background())
	if err != nil {
		logger.WithError(err).Error("Sweep failed")
		return err
	}
	logger.Infof("Sweep deleted %d expired revocation records", deleted)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
