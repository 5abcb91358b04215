package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/pidextract"
	"github.com/helixir/citation-enrichment-service/internal/repository"
)

// ExtractionActivities provides the identifier extraction stage.
// Methods on this struct are registered as Temporal activities via the worker.
type ExtractionActivities struct {
	citations     repository.CitationRepository
	casRetryLimit int
	metrics       *observability.Metrics
}

// NewExtractionActivities creates a new ExtractionActivities instance with the
// given dependencies. The metrics parameter may be nil (metrics recording will
// be skipped).
func NewExtractionActivities(
	citations repository.CitationRepository,
	casRetryLimit int,
	metrics *observability.Metrics,
) *ExtractionActivities {
	return &ExtractionActivities{
		citations:     citations,
		casRetryLimit: casRetryLimit,
		metrics:       metrics,
	}
}

// ExtractIdentifiers runs the deterministic identifier matchers over the
// citation text and commits the matched identifiers together with the stage
// advance in one version-guarded write.
//
// The stage is a no-op when the citation is already processed or has moved
// past StageNone. Matching is deterministic, so a retried execution writes
// the same identifiers it would have written the first time.
func (a *ExtractionActivities) ExtractIdentifiers(ctx context.Context, input ExtractIdentifiersInput) (*ExtractIdentifiersOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("extracting identifiers", "citationID", input.CitationID)

	start := time.Now()
	var result pidextract.Result

	applied, err := casApply(ctx, a.citations, input.CitationID, a.casRetryLimit, stageExtraction, a.metrics,
		func(citation *domain.Citation) (repository.CitationPatch, bool) {
			if !citation.EligibleForExtraction() {
				return repository.CitationPatch{}, false
			}

			result = pidextract.Extract(citation.Text())

			patch := repository.CitationPatch{
				ProcessingStage: repository.StagePtr(domain.StageIdentifiersExtracted),
			}
			if result.DOI != "" {
				patch.DOI = repository.StringPtr(result.DOI)
			}
			if result.ArXivID != "" {
				patch.ArXivID = repository.StringPtr(result.ArXivID)
			}
			if result.Handle != "" {
				patch.Handle = repository.StringPtr(result.Handle)
			}
			return patch, true
		})
	if err != nil {
		a.recordStage(stageExtraction, outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, transientError("extract identifiers: conflict retries exhausted", err)
		}
		logger.Error("failed to extract identifiers", "citationID", input.CitationID, "error", err)
		return nil, fmt.Errorf("extract identifiers: %w", err)
	}

	if !applied {
		logger.Info("citation not eligible for extraction, skipping", "citationID", input.CitationID)
		a.recordStage(stageExtraction, outcomeSkipped, start)
		return &ExtractIdentifiersOutput{Applied: false}, nil
	}

	if a.metrics != nil {
		if result.DOI != "" {
			a.metrics.RecordIdentifierExtracted(pidextract.KindDOI)
		}
		if result.ArXivID != "" {
			a.metrics.RecordIdentifierExtracted(pidextract.KindArXiv)
		}
		if result.Handle != "" {
			a.metrics.RecordIdentifierExtracted(pidextract.KindHandle)
		}
	}
	a.recordStage(stageExtraction, outcomeApplied, start)

	logger.Info("identifiers extracted",
		"citationID", input.CitationID,
		"hasDOI", result.DOI != "",
		"hasArXivID", result.ArXivID != "",
		"hasHandle", result.Handle != "",
	)

	return &ExtractIdentifiersOutput{
		Applied: true,
		DOI:     result.DOI,
		ArXivID: result.ArXivID,
		Handle:  result.Handle,
	}, nil
}

func (a *ExtractionActivities) recordStage(stage, outcome string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordStageExecution(stage, outcome, time.Since(start).Seconds())
	}
}
