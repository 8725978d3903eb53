package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/igmrrf/bugrelay-sub004/pkg/api"
	"github.com/igmrrf/bugrelay-sub004/pkg/auth"
	"github.com/igmrrf/bugrelay-sub004/pkg/config"
	"github.com/igmrrf/bugrelay-sub004/pkg/identity"
	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
	"github.com/igmrrf/bugrelay-sub004/pkg/revocation"
	"github.com/igmrrf/bugrelay-sub004/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bugrelay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting BugRelay auth service")

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	redisClient, err := newRedisClient(cfg.Redis, logger)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	ledger, err := revocation.NewStore(db, redisClient, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize revocation store: %w", err)
	}

	userStore, err := users.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return err
	}
	service := auth.NewService(issuer, auth.NewPasswordHasher().WithMetrics(metrics), ledger, logger, metrics)

	linker, err := buildLinker(cfg.OAuth, logger, metrics)
	if err != nil {
		return err
	}

	health := observability.NewHealthChecker(db, redisClient)

	server := api.NewServer(service, userStore, logger, api.Options{
		Linker:  linker,
		Metrics: metrics,
		Health:  health,
	})

	if cfg.Observability.MetricsEnabled {
		server.Router().Handle("/metrics", observability.Handler(registry)).Methods("GET")
		go reportDBStats(db, metrics)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.Infof("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	return shutdown.WaitForShutdown()
}

// newRedisClient connects the revocation fast path. A missing redis is a
// warning, not a startup failure: the store answers from PostgreSQL alone.
func newRedisClient(cfg config.RedisConfig, logger *observability.Logger) (*redis.Client, error) {
	if cfg.URL == "" {
		logger.Warn("Redis not configured, revocation checks will hit PostgreSQL directly")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	logger.Infof("Redis configured at %s", opts.Addr)
	return client, nil
}

// buildLinker wires the identity providers. No configured providers means
// password-only auth; the oauth routes simply do not exist.
func buildLinker(cfg config.OAuthConfig, logger *observability.Logger, metrics *observability.Metrics) (*identity.Linker, error) {
	if cfg.GoogleClientID == "" && cfg.GitHubClientID == "" {
		logger.Info("No OAuth providers configured, oauth routes disabled")
		return nil, nil
	}

	linker, err := identity.NewLinker(context.Background(), cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity providers: %w", err)
	}
	logger.Infof("OAuth providers configured: %v", linker.Providers())
	return linker, nil
}

func reportDBStats(db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := db.Stats()
		metrics.DBConnectionsActive.Set(float64(stats.InUse))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))
	}
}
