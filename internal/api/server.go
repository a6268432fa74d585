// Package api serves the supervisor dashboard's JSON admin API.
package api

import (
	"context"
	"net/http"
	"time"

	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/observability"
	"complaint-desk/internal/complaint"
	"complaint-desk/internal/fieldworker"
	"complaint-desk/internal/models"
	"complaint-desk/internal/search"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Searcher is satisfied by *search.Index.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (search.Result, error)
}

// Summarizer is satisfied by *reporting.Service.
type Summarizer interface {
	Summary(ctx context.Context) (models.DashboardSummary, error)
}

// DeadLetterReader is satisfied by *notification.Queue.
type DeadLetterReader interface {
	DeadLetters(ctx context.Context, limit int64) ([]models.NotificationEvent, error)
}

// CheckFunc reports whether one backing service is reachable.
type CheckFunc func(ctx context.Context) error

type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type Deps struct {
	Coordinator *complaint.Coordinator
	Registry    *fieldworker.Registry
	Reporting   Summarizer
	Search      Searcher         // nil disables /api/complaints/search
	DeadLetters DeadLetterReader // nil when notifications are disabled
	Checks      map[string]CheckFunc
	Obs         *observability.Observability
	Logger      logger.Logger
}

type Server struct {
	cfg         Config
	coordinator *complaint.Coordinator
	registry    *fieldworker.Registry
	reporting   Summarizer
	search      Searcher
	deadLetters DeadLetterReader
	checks      map[string]CheckFunc
	obs         *observability.Observability
	logger      logger.Logger
}

func NewServer(cfg Config, deps Deps) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Server{
		cfg:         cfg,
		coordinator: deps.Coordinator,
		registry:    deps.Registry,
		reporting:   deps.Reporting,
		search:      deps.Search,
		deadLetters: deps.DeadLetters,
		checks:      deps.Checks,
		obs:         deps.Obs,
		logger:      deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
}

func (s *Server) standard() alice.Chain {
	return alice.New(s.recoverPanic, secureHeaders, makeResponseJSON, s.withTimeout)
}

// chain is the middleware stack for an observed route. observe sits outside
// recoverPanic so a recovered panic is recorded as a 500.
func (s *Server) chain(pattern string) alice.Chain {
	return alice.New(s.observe(pattern)).Extend(s.standard())
}

// Routes returns the full handler tree wrapped in CORS.
func (s *Server) Routes() http.Handler {
	standard := s.standard()
	route := s.chain

	mux := pat.New()

	// Complaints. /search must be registered before /:id.
	mux.Get("/api/complaints", route("/api/complaints").ThenFunc(s.listComplaints))
	mux.Post("/api/complaints", route("/api/complaints").ThenFunc(s.createComplaint))
	mux.Get("/api/complaints/search", route("/api/complaints/search").ThenFunc(s.searchComplaints))
	mux.Get("/api/complaints/:id", route("/api/complaints/:id").ThenFunc(s.getComplaint))
	mux.Post("/api/complaints/:id/assign", route("/api/complaints/:id/assign").ThenFunc(s.assignComplaint))
	mux.Post("/api/complaints/:id/complete", route("/api/complaints/:id/complete").ThenFunc(s.completeComplaint))

	// Field workers
	mux.Get("/api/field-workers", route("/api/field-workers").ThenFunc(s.listFieldWorkers))
	mux.Post("/api/field-workers", route("/api/field-workers").ThenFunc(s.addFieldWorker))
	mux.Get("/api/field-workers/eligible", route("/api/field-workers/eligible").ThenFunc(s.eligibleFieldWorkers))
	mux.Del("/api/field-workers/:id", route("/api/field-workers/:id").ThenFunc(s.removeFieldWorker))

	mux.Get("/api/categories", route("/api/categories").ThenFunc(s.listCategories))
	mux.Get("/api/dashboard", route("/api/dashboard").ThenFunc(s.dashboard))
	mux.Get("/api/notifications/dead-letters", route("/api/notifications/dead-letters").ThenFunc(s.listDeadLetters))

	mux.Get("/health", standard.ThenFunc(s.health))
	mux.Get("/ready", standard.ThenFunc(s.ready))
	mux.Get("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(mux)
}
