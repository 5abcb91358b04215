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

// IdentityActivities provides the author identity resolution stage.
type IdentityActivities struct {
	citations     repository.CitationRepository
	orcid         registries.IdentitySource
	casRetryLimit int
	metrics       *observability.Metrics
}

// NewIdentityActivities creates a new IdentityActivities instance. The orcid
// source may be nil when the registry is disabled; the activity then advances
// the stage marker without any lookups. The metrics parameter may be nil.
func NewIdentityActivities(
	citations repository.CitationRepository,
	orcid registries.IdentitySource,
	casRetryLimit int,
	metrics *observability.Metrics,
) *IdentityActivities {
	return &IdentityActivities{
		citations:     citations,
		orcid:         orcid,
		casRetryLimit: casRetryLimit,
		metrics:       metrics,
	}
}

// authorUpdate records the outcome of one author's identity lookup so the
// commit loop can re-apply it to a freshly fetched record. Updates are keyed
// by index; the authors array length is stable across enrichment.
type authorUpdate struct {
	index       int
	clearORCID  bool
	name        string
	affiliation string
}

// ResolveAuthorIdentities iterates the citation's authors once, resolving
// each identity reference against the identity registry, then commits the
// patched authors array together with the stage advance in a single
// version-guarded write.
//
// Authors are isolated from one another: a not-found answer clears that
// author's identity reference and the pass continues. A timeout or transport
// error aborts the whole pass with a retryable failure and no write, so the
// retried execution re-resolves every author.
func (a *IdentityActivities) ResolveAuthorIdentities(ctx context.Context, input ResolveAuthorIdentitiesInput) (*ResolveAuthorIdentitiesOutput, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	citation, err := a.citations.Get(ctx, input.CitationID)
	if err != nil {
		a.recordStage(outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		return nil, fmt.Errorf("get citation: %w", err)
	}

	if !citation.EligibleForIdentityResolution() {
		logger.Info("citation already processed, skipping identity resolution", "citationID", input.CitationID)
		a.recordStage(outcomeSkipped, start)
		return &ResolveAuthorIdentitiesOutput{Applied: false}, nil
	}

	logger.Info("resolving author identities",
		"citationID", input.CitationID,
		"authorCount", len(citation.Authors),
	)

	output := &ResolveAuthorIdentitiesOutput{}
	updates := make([]authorUpdate, 0, len(citation.Authors))

	for i, author := range citation.Authors {
		if author.ORCID == "" {
			output.Skipped++
			continue
		}
		if a.orcid == nil || !a.orcid.IsEnabled() {
			output.Skipped++
			continue
		}

		callStart := time.Now()
		person, status, err := a.orcid.ResolveID(ctx, author.ORCID)
		if a.metrics != nil {
			a.metrics.RecordRegistryRequest(a.orcid.Name(), "record", time.Since(callStart).Seconds())
		}
		if err != nil {
			if a.metrics != nil {
				a.metrics.RecordRegistryRequestFailed(a.orcid.Name(), "record", "transport")
			}
			a.recordStage(outcomeFailed, start)
			return nil, transientError(fmt.Sprintf("identity lookup for %s", author.ORCID), err)
		}

		switch {
		case statusSuccess(status) && person != nil:
			update := authorUpdate{index: i}
			if person.Name != "" {
				update.name = person.Name
			}
			if person.Affiliation != "" {
				update.affiliation = person.Affiliation
			}
			updates = append(updates, update)
			output.Resolved++
			if a.metrics != nil {
				a.metrics.RecordAuthorResolved("resolved")
			}

		case status == http.StatusNotFound:
			// The registry does not know this identity reference. Clear it so
			// later passes stop asking.
			updates = append(updates, authorUpdate{index: i, clearORCID: true})
			output.Cleared++
			if a.metrics != nil {
				a.metrics.RecordAuthorResolved("not_found")
			}
			logger.Info("identity reference unknown, clearing",
				"citationID", input.CitationID,
				"authorIndex", i,
			)

		case statusRetryable(status):
			if a.metrics != nil {
				a.metrics.RecordRegistryRequestFailed(a.orcid.Name(), "record", "timeout")
			}
			a.recordStage(outcomeFailed, start)
			return nil, transientError(
				fmt.Sprintf("identity registry answered status %d for %s", status, author.ORCID), nil)

		default:
			logger.Warn("unexpected identity registry status, leaving author untouched",
				"citationID", input.CitationID,
				"authorIndex", i,
				"status", status,
			)
			output.Skipped++
		}
	}

	applied, err := casApply(ctx, a.citations, input.CitationID, a.casRetryLimit, stageIdentities, a.metrics,
		func(fresh *domain.Citation) (repository.CitationPatch, bool) {
			if !fresh.EligibleForIdentityResolution() {
				return repository.CitationPatch{}, false
			}
			authors := fresh.CloneAuthors()
			for _, u := range updates {
				if u.index >= len(authors) {
					continue
				}
				if u.clearORCID {
					authors[u.index].ORCID = ""
					continue
				}
				if u.name != "" {
					authors[u.index].Name = u.name
				}
				if u.affiliation != "" {
					authors[u.index].Affiliation = u.affiliation
				}
			}
			patch := repository.CitationPatch{
				ProcessingStage: repository.StagePtr(domain.StageIdentitiesResolved),
			}
			if len(authors) > 0 {
				patch.Authors = repository.AuthorsPtr(authors)
			}
			return patch, true
		})
	if err != nil {
		a.recordStage(outcomeFailed, start)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fatalInputError(fmt.Sprintf("citation %s not found", input.CitationID), err)
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, transientError("resolve author identities: conflict retries exhausted", err)
		}
		return nil, fmt.Errorf("resolve author identities: commit authors: %w", err)
	}

	output.Applied = applied
	if applied {
		a.recordStage(outcomeApplied, start)
	} else {
		a.recordStage(outcomeSkipped, start)
	}

	logger.Info("author identities resolved",
		"citationID", input.CitationID,
		"resolved", output.Resolved,
		"cleared", output.Cleared,
		"skipped", output.Skipped,
		"applied", applied,
	)

	return output, nil
}

func (a *IdentityActivities) recordStage(outcome string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordStageExecution(stageIdentities, outcome, time.Since(start).Seconds())
	}
}
