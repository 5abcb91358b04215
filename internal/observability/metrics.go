package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation enrichment service.
// Metrics are organized by subsystem: enrichments, stages, registries, storage,
// and events. All counters and histograms are registered via promauto for
// automatic registration with the default Prometheus registry.
type Metrics struct {
	// EnrichmentsStarted counts enrichment workflows started, labeled by reason
	// (initial, reprocess).
	EnrichmentsStarted *prometheus.CounterVec

	// EnrichmentsCompleted counts the total number of enrichments that finished successfully.
	EnrichmentsCompleted prometheus.Counter

	// EnrichmentsFailed counts the total number of enrichments that ended in failure.
	EnrichmentsFailed prometheus.Counter

	// EnrichmentDuration observes the end-to-end duration of enrichments in seconds.
	EnrichmentDuration prometheus.Histogram

	// StageExecutions counts stage executions, labeled by stage and outcome
	// (applied, skipped, no_op, failed).
	StageExecutions *prometheus.CounterVec

	// StageDuration observes stage execution duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// IdentifiersExtracted counts identifiers extracted from citation text, labeled by kind
	// (doi, arxiv, handle).
	IdentifiersExtracted *prometheus.CounterVec

	// CasConflicts counts version-guarded writes that lost to a concurrent writer, labeled by stage.
	CasConflicts *prometheus.CounterVec

	// CasRetriesExhausted counts stage executions that gave up after the bounded
	// number of conflict retries, labeled by stage.
	CasRetriesExhausted *prometheus.CounterVec

	// RegistryRequestsTotal counts HTTP requests to external registries, labeled by registry and endpoint.
	RegistryRequestsTotal *prometheus.CounterVec

	// RegistryRequestsFailed counts failed HTTP requests to external registries, labeled by registry, endpoint, and error type.
	RegistryRequestsFailed *prometheus.CounterVec

	// RegistryRequestDuration observes HTTP request duration to external registries in seconds.
	RegistryRequestDuration *prometheus.HistogramVec

	// RegistryNotFound counts lookups the registry answered with a not-found, labeled by registry.
	RegistryNotFound *prometheus.CounterVec

	// RegistryRateLimited counts rate-limited responses from external registries, labeled by registry.
	RegistryRateLimited *prometheus.CounterVec

	// AuthorsResolved counts author identity lookups, labeled by outcome
	// (resolved, not_found).
	AuthorsResolved *prometheus.CounterVec

	// EventsPublished counts citation lifecycle events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts citation lifecycle events that failed to publish, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Enrichments
		EnrichmentsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_started_total",
			Help:      "Total number of citation enrichments started by reason",
		}, []string{"reason"}),
		EnrichmentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_completed_total",
			Help:      "Total number of citation enrichments completed successfully",
		}),
		EnrichmentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_failed_total",
			Help:      "Total number of citation enrichments that failed",
		}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_duration_seconds",
			Help:      "Duration of citation enrichments in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		// Stages
		StageExecutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of enrichment stage executions by stage and outcome",
		}, []string{"stage", "outcome"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of enrichment stage executions in seconds by stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		IdentifiersExtracted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_extracted_total",
			Help:      "Total number of identifiers extracted from citation text by kind",
		}, []string{"kind"}),

		// Concurrency
		CasConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_conflicts_total",
			Help:      "Total number of version-guarded writes lost to a concurrent writer by stage",
		}, []string{"stage"}),
		CasRetriesExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_retries_exhausted_total",
			Help:      "Total number of stage executions that exhausted conflict retries by stage",
		}, []string{"stage"}),

		// Registries
		RegistryRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_requests_total",
			Help:      "Total number of requests to external registries",
		}, []string{"registry", "endpoint"}),
		RegistryRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_requests_failed_total",
			Help:      "Total number of failed requests to external registries",
		}, []string{"registry", "endpoint", "error_type"}),
		RegistryRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_request_duration_seconds",
			Help:      "Duration of requests to external registries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"registry", "endpoint"}),
		RegistryNotFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_not_found_total",
			Help:      "Total number of not-found responses from external registries",
		}, []string{"registry"}),
		RegistryRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_rate_limited_total",
			Help:      "Total number of rate limit responses from external registries",
		}, []string{"registry"}),

		// Authors
		AuthorsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authors_resolved_total",
			Help:      "Total number of author identity lookups by outcome",
		}, []string{"outcome"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of citation lifecycle events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of citation lifecycle events that failed to publish by type",
		}, []string{"event_type"}),
	}
}

// RecordEnrichmentStarted records that an enrichment has started.
func (m *Metrics) RecordEnrichmentStarted(reason string) {
	m.EnrichmentsStarted.WithLabelValues(reason).Inc()
}

// RecordEnrichmentCompleted records that an enrichment has completed.
func (m *Metrics) RecordEnrichmentCompleted(durationSeconds float64) {
	m.EnrichmentsCompleted.Inc()
	m.EnrichmentDuration.Observe(durationSeconds)
}

// RecordEnrichmentFailed records that an enrichment has failed.
func (m *Metrics) RecordEnrichmentFailed(durationSeconds float64) {
	m.EnrichmentsFailed.Inc()
	m.EnrichmentDuration.Observe(durationSeconds)
}

// RecordStageExecution records a stage execution with its outcome.
func (m *Metrics) RecordStageExecution(stage, outcome string, durationSeconds float64) {
	m.StageExecutions.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordIdentifierExtracted records an identifier extracted from citation text.
func (m *Metrics) RecordIdentifierExtracted(kind string) {
	m.IdentifiersExtracted.WithLabelValues(kind).Inc()
}

// RecordCasConflict records a version-guarded write lost to a concurrent writer.
func (m *Metrics) RecordCasConflict(stage string) {
	m.CasConflicts.WithLabelValues(stage).Inc()
}

// RecordCasRetriesExhausted records a stage giving up after bounded conflict retries.
func (m *Metrics) RecordCasRetriesExhausted(stage string) {
	m.CasRetriesExhausted.WithLabelValues(stage).Inc()
}

// RecordRegistryRequest records a request to an external registry.
func (m *Metrics) RecordRegistryRequest(registry, endpoint string, durationSeconds float64) {
	m.RegistryRequestsTotal.WithLabelValues(registry, endpoint).Inc()
	m.RegistryRequestDuration.WithLabelValues(registry, endpoint).Observe(durationSeconds)
}

// RecordRegistryRequestFailed records a failed request to an external registry.
func (m *Metrics) RecordRegistryRequestFailed(registry, endpoint, errorType string) {
	m.RegistryRequestsFailed.WithLabelValues(registry, endpoint, errorType).Inc()
}

// RecordRegistryNotFound records a not-found response from an external registry.
func (m *Metrics) RecordRegistryNotFound(registry string) {
	m.RegistryNotFound.WithLabelValues(registry).Inc()
}

// RecordRegistryRateLimited records a rate limit response from an external registry.
func (m *Metrics) RecordRegistryRateLimited(registry string) {
	m.RegistryRateLimited.WithLabelValues(registry).Inc()
}

// RecordAuthorResolved records an author identity lookup outcome.
func (m *Metrics) RecordAuthorResolved(outcome string) {
	m.AuthorsResolved.WithLabelValues(outcome).Inc()
}

// RecordEventPublished records a citation lifecycle event published.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a citation lifecycle event that failed to publish.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
