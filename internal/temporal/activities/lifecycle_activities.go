package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/events"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/repository"
)

// LifecycleActivities provides the completion marker, the reprocess reset,
// and lifecycle event publishing.
type LifecycleActivities struct {
	citations     repository.CitationRepository
	publisher     events.Publisher
	casRetryLimit int
	metrics       *observability.Metrics
}

// NewLifecycleActivities creates a new LifecycleActivities instance. The
// publisher may be nil (event publishing will be skipped). The metrics
// parameter may be nil.
func NewLifecycleActivities(
	citations repository.CitationRepository,
	publisher events.Publisher,
	casRetryLimit int,
	metrics *observability.Metrics,
) *LifecycleActivities {
	return &LifecycleActivities{
		citations:     citations,
		publisher:     publisher,
		casRetryLimit: casRetryLimit,
		metrics:       metrics,
	}
}

// MarkProcessed sets the terminal processed marker on the citation. The write
// is idempotent: an already processed citation is left untouched.
func (a *LifecycleActivities) MarkProcessed(ctx context.Context, input MarkProcessedInput) (*MarkProcessedOutput, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	applied, err := casApply(ctx, a.citations, input.CitationID, a.casRetryLimit, stageCompletion, a.metrics,
		func(citation *domain.Citation) (repository.CitationPatch, bool) {
			if !citation.EligibleForCompletion() {
				return repository.CitationPatch{}, false
			}
			return repository.CitationPatch{IsProcessed: repository.BoolPtr(true)}, true
		})
	if err != nil {
		a.recordStage(stageCompletion, outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, transientError("mark processed: conflict retries exhausted", err)
		}
		return nil, fmt.Errorf("mark processed: %w", err)
	}

	if applied {
		a.recordStage(stageCompletion, outcomeApplied, start)
		logger.Info("citation marked processed", "citationID", input.CitationID)
	} else {
		a.recordStage(stageCompletion, outcomeSkipped, start)
		logger.Info("citation already processed", "citationID", input.CitationID)
	}

	return &MarkProcessedOutput{Applied: applied}, nil
}

// ResetForReprocess clears the terminal marker and rewinds the stage ordinal
// so a reprocess run starts from scratch. A missing citation is fatal: there
// is nothing to reprocess.
func (a *LifecycleActivities) ResetForReprocess(ctx context.Context, input ResetForReprocessInput) error {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	_, err := casApply(ctx, a.citations, input.CitationID, a.casRetryLimit, stageReset, a.metrics,
		func(citation *domain.Citation) (repository.CitationPatch, bool) {
			// The reset applies unconditionally; it is the one writer allowed
			// to move the stage marker backwards.
			return repository.CitationPatch{
				IsProcessed:     repository.BoolPtr(false),
				ProcessingStage: repository.StagePtr(domain.StageNone),
			}, true
		})
	if err != nil {
		a.recordStage(stageReset, outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return transientError("reset for reprocess: conflict retries exhausted", err)
		}
		return fmt.Errorf("reset for reprocess: %w", err)
	}

	a.recordStage(stageReset, outcomeApplied, start)
	logger.Info("citation reset for reprocess", "citationID", input.CitationID)
	return nil
}

// PublishEnrichmentEvent emits a citation lifecycle event to the broker.
// Publishing is fire-and-forget: any failure is logged and absorbed so the
// pipeline never fails because the broker is unavailable.
func (a *LifecycleActivities) PublishEnrichmentEvent(ctx context.Context, input PublishEnrichmentEventInput) error {
	logger := activity.GetLogger(ctx)

	if a.publisher == nil {
		return nil
	}

	citation, err := a.citations.Get(ctx, input.CitationID)
	if err != nil {
		logger.Warn("cannot load citation for event, dropping",
			"citationID", input.CitationID,
			"eventType", input.EventType,
			"error", err,
		)
		return nil
	}

	var payload interface{}
	if input.EventType == domain.EventTypeCitationEnriched {
		payload = domain.EnrichedPayload{
			Stage:       citation.ProcessingStage.String(),
			DOI:         citation.Identifiers.DOI,
			Title:       citation.Title,
			AuthorCount: len(citation.Authors),
		}
	}

	event, err := domain.NewCitationEvent(input.EventType, citation.ID, citation.SubmissionID, payload)
	if err != nil {
		logger.Warn("cannot build lifecycle event, dropping",
			"citationID", input.CitationID,
			"eventType", input.EventType,
			"error", err,
		)
		return nil
	}

	if err := a.publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish lifecycle event",
			"citationID", input.CitationID,
			"eventType", input.EventType,
			"error", err,
		)
		return nil
	}

	logger.Info("lifecycle event published",
		"citationID", input.CitationID,
		"eventType", input.EventType,
	)
	return nil
}

func (a *LifecycleActivities) recordStage(stage, outcome string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordStageExecution(stage, outcome, time.Since(start).Seconds())
	}
}
