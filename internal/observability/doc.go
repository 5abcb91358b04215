// Package observability provides logging, metrics, and tracing support for
// the citation enrichment service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for enrichments, stages, and registries
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("citation_id", citID).Msg("enrichment started")
//
// Add citation context to logger:
//
//	logger = observability.WithCitationContext(logger, citationID, submissionID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("citation_enrichment")
//
// Record metrics:
//
//	metrics.RecordEnrichmentStarted("initial")
//	metrics.RecordStageExecution("resolve_crossref", "applied", 0.42)
//	metrics.RecordRegistryNotFound("orcid")
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithCitation(ctx, citationID, submissionID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	citationID, submissionID := observability.CitationFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - citation_id: Citation identifier
//   - submission_id: Submission the citation belongs to
//   - registry: External registry (crossref, openalex, orcid)
//   - identifier: Identifier being resolved (DOI, ORCID iD)
//   - stage: Enrichment stage name
//   - trace_id: Distributed trace identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
