package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the auth platform
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Token lifecycle metrics
	TokenPairsIssued     prometheus.Counter
	TokenValidations     *prometheus.CounterVec
	RefreshRotations     *prometheus.CounterVec
	RevocationsTotal     *prometheus.CounterVec
	PasswordHashDuration prometheus.Histogram

	// Revocation store metrics
	RevocationCacheHits      prometheus.Counter
	RevocationCacheMisses    prometheus.Counter
	RevocationStoreFallbacks prometheus.Counter
	RevocationStoreErrors    *prometheus.CounterVec
	SweepDeletedTotal        prometheus.Counter

	// Identity provider metrics
	ProviderExchanges *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugrelay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bugrelay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenPairsIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bugrelay_token_pairs_issued_total",
				Help: "Total number of access/refresh token pairs issued",
			},
		),
		TokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugrelay_token_validations_total",
				Help: "Token validation outcomes",
			},
			[]string{"outcome"},
		),
		RefreshRotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugrelay_refresh_rotations_total",
				Help: "Refresh token rotation outcomes",
			},
			[]string{"outcome"},
		),
		RevocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugrelay_revocations_total",
				Help: "Tokens revoked, by scope (token or user)",
			},
			[]string{"scope"},
		),
		PasswordHashDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bugrelay_password_hash_duration_seconds",
				Help:    "Duration of bcrypt hash operations",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 8),
			},
		),
		RevocationCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bugrelay_revocation_cache_hits_total",
				Help: "Revocation checks answered by the volatile store",
			},
		),
		RevocationCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bugrelay_revocation_cache_misses_total",
				Help: "Revocation checks that missed the volatile store",
			},
		),
		RevocationStoreFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bugrelay_revocation_store_fallbacks_total",
				Help: "Revocation checks that fell back to the durable store because the volatile store was unreachable",
			},
		),
		RevocationStoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugrelay_revocation_store_errors_total",
				Help: "Errors talking to the revocation backing stores",
			},
			[]string{"backend"},
		),
		SweepDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bugrelay_revocation_sweep_deleted_total",
				Help: "Expired revocation records deleted by sweeps",
			},
		),
		ProviderExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugrelay_provider_exchanges_total",
				Help: "OAuth authorization-code exchanges, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bugrelay_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bugrelay_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenPairsIssued,
		m.TokenValidations,
		m.RefreshRotations,
		m.RevocationsTotal,
		m.PasswordHashDuration,
		m.RevocationCacheHits,
		m.RevocationCacheMisses,
		m.RevocationStoreFallbacks,
		m.RevocationStoreErrors,
		m.SweepDeletedTotal,
		m.ProviderExchanges,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry in the Prometheus
// text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request count and duration
// metrics. The path label should be the route template, not the raw URL,
// to keep cardinality bounded.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
