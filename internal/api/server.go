package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/events"
	"github.com/dgallion1/docqa/internal/jobs"
	"github.com/dgallion1/docqa/internal/manager"
	"github.com/dgallion1/docqa/internal/metrics"
	"github.com/dgallion1/docqa/internal/query"
)

// Server is the HTTP facade over the query engine, index manager, and
// traversal event stream.
type Server struct {
	router    chi.Router
	engine    *query.Engine
	manager   *manager.Manager
	jobs      *jobs.Store
	bus       *events.Bus
	collector *metrics.Collector
	log       *slog.Logger
	cfg       config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(engine *query.Engine, mgr *manager.Manager, jobStore *jobs.Store, bus *events.Bus, collector *metrics.Collector, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:    engine,
		manager:   mgr,
		jobs:      jobStore,
		bus:       bus,
		collector: collector,
		log:       log,
		cfg:       cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(CORSMiddleware())

	r.Get("/health", s.handleHealth)

	r.Post("/query", s.handleQuery)
	r.Get("/retrieval_trace", s.handleRetrievalTrace)
	r.Get("/index_structure", s.handleIndexStructure)

	r.Post("/upload", s.handleUpload)
	r.Get("/jobs/{jobID}", s.handleJobStatus)

	r.Get("/metrics", s.handleMetrics)
	r.Get("/index/node/{nodeID}", s.handleIndexNode)

	r.Get("/ws/traversal", s.handleTraversalWS)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
