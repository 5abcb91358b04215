// Package httpserver provides the HTTP REST API for the citation enrichment service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-enrichment-service/internal/database"
	"github.com/helixir/citation-enrichment-service/internal/events"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/repository"
	"github.com/helixir/citation-enrichment-service/internal/temporal"
)

// WorkflowClient is the subset of the Temporal client the HTTP layer needs:
// starting enrichment runs, listing the dead-letter view, and health checks.
// *temporal.EnrichmentWorkflowClient satisfies it.
type WorkflowClient interface {
	StartEnrichmentWorkflow(ctx context.Context, input temporal.EnrichmentWorkflowInput) (workflowID, runID string, err error)
	ListFailedEnrichments(ctx context.Context, pageSize int) ([]temporal.FailedEnrichment, error)
	Health(ctx context.Context) error
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	workflowClient WorkflowClient
	citations      repository.CitationRepository
	publisher      events.Publisher
	metrics        *observability.Metrics
	db             *database.DB
	logger         zerolog.Logger
	validate       *validator.Validate
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
// publisher may be nil, in which case no enrichment-requested events are
// emitted; metrics may be nil in tests.
func NewServer(
	cfg Config,
	workflowClient WorkflowClient,
	citations repository.CitationRepository,
	publisher events.Publisher,
	metrics *observability.Metrics,
	db *database.DB,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		workflowClient: workflowClient,
		citations:      citations,
		publisher:      publisher,
		metrics:        metrics,
		db:             db,
		logger:         logger.With().Str("component", "http-server").Logger(),
		validate:       validator.New(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/submissions/{submissionID}/citations", func(r chi.Router) {
			r.Post("/", s.createCitation)
			r.Get("/", s.listCitations)
			r.Get("/{citationID}", s.getCitation)
			r.Delete("/{citationID}", s.deleteCitation)
			r.Post("/{citationID}/enrich", s.enrichCitation)
		})

		r.Get("/enrichment/failed", s.listFailedEnrichments)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including Temporal connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		health := s.db.Health(r.Context())
		if health.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": health.Status,
				"error":    health.Error,
			})
			return
		}
	}

	if s.workflowClient != nil {
		if err := s.workflowClient.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"temporal": "unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
