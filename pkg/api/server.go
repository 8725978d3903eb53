package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/igmrrf/bugrelay-sub004/pkg/auth"
	"github.com/igmrrf/bugrelay-sub004/pkg/httputil"
	"github.com/igmrrf/bugrelay-sub004/pkg/identity"
	"github.com/igmrrf/bugrelay-sub004/pkg/middleware"
	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
	"github.com/igmrrf/bugrelay-sub004/pkg/users"
)

// Server is the HTTP surface over the authentication core.
type Server struct {
	router  *mux.Router
	service *auth.Service
	users   *users.Store
	linker  *identity.Linker
	guard   *middleware.Guard
	logger  *observability.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker
}

// Options carries the optional collaborators of the server.
type Options struct {
	Linker  *identity.Linker              // nil disables the oauth routes
	Metrics *observability.Metrics        // nil disables instrumentation
	Health  *observability.HealthChecker  // nil disables health routes
	CORS    []string                      // allowed origins; empty disables CORS
}

// NewServer wires the routes and middleware.
func NewServer(service *auth.Service, userStore *users.Store, logger *observability.Logger, opts Options) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		users:   userStore,
		linker:  opts.Linker,
		guard:   middleware.NewGuard(service, logger),
		logger:  logger,
		metrics: opts.Metrics,
		health:  opts.Health,
	}

	s.setupRoutes(opts.CORS)
	return s
}

func (s *Server) setupRoutes(corsOrigins []string) {
	chain := []mux.MiddlewareFunc{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
	}
	if len(corsOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(corsOrigins))
	}
	s.router.Use(chain...)

	authRouter := s.router.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", s.instrument("/register", s.register)).Methods("POST")
	authRouter.HandleFunc("/login", s.instrument("/login", s.login)).Methods("POST")
	authRouter.HandleFunc("/refresh", s.instrument("/refresh", s.refresh)).Methods("POST")
	authRouter.HandleFunc("/logout", s.instrument("/logout", s.logout)).Methods("POST")
	authRouter.Handle("/logout-all",
		s.guard.RequireAuth(http.HandlerFunc(s.instrument("/logout-all", s.logoutAll)))).Methods("POST")
	authRouter.Handle("/me",
		s.guard.RequireAuth(http.HandlerFunc(s.instrument("/me", s.me)))).Methods("GET")

	if s.linker != nil {
		authRouter.HandleFunc("/oauth/callback/{provider}",
			s.instrument("/oauth/callback", s.oauthCallback)).Methods("GET")
		authRouter.HandleFunc("/oauth/{provider}",
			s.instrument("/oauth/initiate", s.oauthInitiate)).Methods("GET")
	}

	if s.health != nil {
		s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}
}

// instrument wraps a handler func with per-route metrics when enabled.
func (s *Server) instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	wrapped := s.metrics.InstrumentHandler(path, h)
	return wrapped.ServeHTTP
}

// Router exposes the underlying router so binaries can mount extra
// handlers (e.g. /metrics).
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
