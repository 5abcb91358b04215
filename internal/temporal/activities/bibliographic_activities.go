package activities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/registries"
	"github.com/helixir/citation-enrichment-service/internal/repository"
)

// BibliographicActivities provides the DOI-keyed bibliographic resolution
// stages. Each registry gets its own activity so the workflow can run them
// concurrently under independent retry policies.
type BibliographicActivities struct {
	citations     repository.CitationRepository
	crossref      registries.BibliographicSource
	openalex      registries.BibliographicSource
	casRetryLimit int
	metrics       *observability.Metrics
}

// NewBibliographicActivities creates a new BibliographicActivities instance.
// Either source may be nil when the registry is disabled; its activity then
// skips without a call. The metrics parameter may be nil.
func NewBibliographicActivities(
	citations repository.CitationRepository,
	crossref registries.BibliographicSource,
	openalex registries.BibliographicSource,
	casRetryLimit int,
	metrics *observability.Metrics,
) *BibliographicActivities {
	return &BibliographicActivities{
		citations:     citations,
		crossref:      crossref,
		openalex:      openalex,
		casRetryLimit: casRetryLimit,
		metrics:       metrics,
	}
}

// ResolveCrossref resolves bibliographic metadata for the citation's DOI
// against the Crossref works API and merges the returned fields.
func (a *BibliographicActivities) ResolveCrossref(ctx context.Context, input ResolveBibliographicInput) (*ResolveBibliographicOutput, error) {
	return a.resolve(ctx, a.crossref, stageCrossref, input)
}

// ResolveOpenAlex resolves bibliographic metadata for the citation's DOI
// against the OpenAlex works API and merges the returned fields.
func (a *BibliographicActivities) ResolveOpenAlex(ctx context.Context, input ResolveBibliographicInput) (*ResolveBibliographicOutput, error) {
	return a.resolve(ctx, a.openalex, stageOpenAlex, input)
}

// resolve is the shared stage body: re-fetch, eligibility check, a single
// ResolveByDOI call, status classification, and a version-guarded merge of
// only the returned bibliographic fields. Authors and the stage marker are
// never touched here.
func (a *BibliographicActivities) resolve(ctx context.Context, source registries.BibliographicSource, stage string, input ResolveBibliographicInput) (*ResolveBibliographicOutput, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	if source == nil || !source.IsEnabled() {
		logger.Info("bibliographic source disabled, skipping", "stage", stage, "citationID", input.CitationID)
		a.recordStage(stage, outcomeSkipped, start)
		return &ResolveBibliographicOutput{Applied: false}, nil
	}

	citation, err := a.citations.Get(ctx, input.CitationID)
	if err != nil {
		a.recordStage(stage, outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		return nil, fmt.Errorf("get citation: %w", err)
	}

	if !citation.EligibleForBibliographic() {
		logger.Info("citation not eligible for bibliographic resolution, skipping",
			"stage", stage,
			"citationID", input.CitationID,
			"processed", citation.IsProcessed,
			"hasDOI", citation.HasDOI(),
		)
		a.recordStage(stage, outcomeSkipped, start)
		return &ResolveBibliographicOutput{Applied: false, Registry: source.Name()}, nil
	}

	doi := citation.Identifiers.DOI
	logger.Info("resolving bibliographic metadata",
		"stage", stage,
		"citationID", input.CitationID,
		"registry", source.Name(),
		"doi", doi,
	)

	callStart := time.Now()
	record, status, err := source.ResolveByDOI(ctx, doi)
	if a.metrics != nil {
		a.metrics.RecordRegistryRequest(source.Name(), "works", time.Since(callStart).Seconds())
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordRegistryRequestFailed(source.Name(), "works", "transport")
		}
		a.recordStage(stage, outcomeFailed, start)
		return nil, transientError(fmt.Sprintf("%s lookup for doi %s", source.Name(), doi), err)
	}

	output := &ResolveBibliographicOutput{Registry: source.Name(), StatusCode: status}

	switch {
	case statusSuccess(status) && record != nil:
		// Merge below.

	case status == http.StatusNotFound:
		logger.Info("registry does not know the doi",
			"stage", stage,
			"citationID", input.CitationID,
			"registry", source.Name(),
			"doi", doi,
		)
		if a.metrics != nil {
			a.metrics.RecordRegistryNotFound(source.Name())
		}
		a.recordStage(stage, outcomeNoOp, start)
		return output, nil

	case statusRetryable(status):
		if a.metrics != nil {
			a.metrics.RecordRegistryRequestFailed(source.Name(), "works", "timeout")
		}
		a.recordStage(stage, outcomeFailed, start)
		return nil, transientError(
			fmt.Sprintf("%s answered status %d for doi %s", source.Name(), status, doi), nil)

	default:
		logger.Warn("unexpected registry status, skipping",
			"stage", stage,
			"citationID", input.CitationID,
			"registry", source.Name(),
			"status", status,
		)
		if a.metrics != nil {
			a.metrics.RecordRegistryRequestFailed(source.Name(), "works", "unexpected_status")
		}
		a.recordStage(stage, outcomeNoOp, start)
		return output, nil
	}

	applied, err := casApply(ctx, a.citations, input.CitationID, a.casRetryLimit, stage, a.metrics,
		func(fresh *domain.Citation) (repository.CitationPatch, bool) {
			if !fresh.EligibleForBibliographic() {
				return repository.CitationPatch{}, false
			}
			return workPatch(record), true
		})
	if err != nil {
		a.recordStage(stage, outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, transientError(stage+": conflict retries exhausted", err)
		}
		return nil, fmt.Errorf("%s: merge record: %w", stage, err)
	}

	output.Applied = applied
	output.Title = record.Title

	if applied {
		a.recordStage(stage, outcomeApplied, start)
		logger.Info("bibliographic metadata merged",
			"stage", stage,
			"citationID", input.CitationID,
			"registry", source.Name(),
			"title", record.Title,
		)
	} else {
		a.recordStage(stage, outcomeSkipped, start)
	}

	return output, nil
}

// workPatch maps a registry work record onto a citation patch. Only fields
// the registry actually returned are written, so a sparse record never clears
// metadata another registry already filled in.
func workPatch(record *registries.WorkRecord) repository.CitationPatch {
	var patch repository.CitationPatch
	if record.Title != "" {
		patch.Title = repository.StringPtr(record.Title)
	}
	if record.Venue != "" {
		patch.Venue = repository.StringPtr(record.Venue)
	}
	if record.Journal != "" {
		patch.Journal = repository.StringPtr(record.Journal)
	}
	if record.Volume != "" {
		patch.Volume = repository.StringPtr(record.Volume)
	}
	if record.Issue != "" {
		patch.Issue = repository.StringPtr(record.Issue)
	}
	if record.Pages != "" {
		patch.Pages = repository.StringPtr(record.Pages)
	}
	if record.PublicationYear != 0 {
		patch.PublicationYear = repository.IntPtr(record.PublicationYear)
	}
	if record.URL != "" {
		patch.URL = repository.StringPtr(record.URL)
	}
	return patch
}

func (a *BibliographicActivities) recordStage(stage, outcome string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordStageExecution(stage, outcome, time.Since(start).Seconds())
	}
}
