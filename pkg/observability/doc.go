// Package observability provides structured logging, Prometheus metrics,
// health checks and graceful shutdown for the BugRelay auth platform.
//
// # Logging
//
// Structured JSON logging on top of stdlib slog:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", userID).Info("token pair issued")
//	logger.WithError(err).Error("revocation check failed")
//
// # Metrics
//
// All metrics are registered against a caller-supplied registry and use
// the bugrelay_ prefix:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.TokenPairsIssued.Inc()
//
// Core components accept a nil *Metrics; instrumentation is skipped when
// metrics are disabled.
//
// # Health
//
// HealthChecker exposes liveness and readiness probes over the postgres
// and redis dependencies:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/healthz", checker.Liveness)
//	mux.HandleFunc("/readyz", checker.Readiness)
package observability
