package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/GuilhermeSoares009/signal-filter/internal/audit"
	"github.com/GuilhermeSoares009/signal-filter/internal/ratelimit"
)

type Options struct {
	// FilterName labels decisions in logs and the audit trail.
	FilterName string
	Logger     *zap.Logger
	// AuditStore defaults to an in-memory store of 1000 entries.
	AuditStore *audit.Store
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
}

type Server struct {
	filter         ratelimit.Filter
	filterName     string
	auditStore     *audit.Store
	logger         *zap.Logger
	metricsHandler http.Handler
	router         chi.Router
}

func NewServer(filter ratelimit.Filter, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.AuditStore
	if store == nil {
		store = audit.NewStore(0)
	}
	server := &Server{
		filter:         filter,
		filterName:     opts.FilterName,
		auditStore:     store,
		logger:         logger.Named("httpapi"),
		metricsHandler: opts.MetricsHandler,
		router:         chi.NewRouter(),
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	s.router.Get("/api/v1/health", s.handleHealth)
	s.router.Post("/api/v1/signals", s.handleSignal)
	s.router.Get("/api/v1/audit/signals", s.handleAudit)
	if s.metricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}
