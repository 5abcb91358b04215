package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/repository"
)

// casApply fetches the citation, computes a patch from the fresh record via
// compute, and applies it with a version-guarded CasEdit. When the write loses
// to a concurrent writer the whole cycle repeats, re-fetching and recomputing
// the patch, up to retryLimit additional attempts.
//
// compute returns the patch to write and whether to write at all: returning
// false means the stage is no longer applicable against the fresh record and
// the write is skipped silently. The freshness check belongs inside compute so
// that every retry re-evaluates eligibility.
//
// Returns (true, nil) when the patch was committed, (false, nil) when compute
// declined on every relevant attempt. Get and CasEdit errors are returned
// unwrapped so callers can classify domain.ErrNotFound and
// domain.ErrConcurrencyConflict themselves; conflict-retry exhaustion is
// reported as a wrapped domain.ErrConcurrencyConflict.
func casApply(
	ctx context.Context,
	citations repository.CitationRepository,
	id uuid.UUID,
	retryLimit int,
	stage string,
	metrics *observability.Metrics,
	compute func(*domain.Citation) (repository.CitationPatch, bool),
) (bool, error) {
	if retryLimit < 0 {
		retryLimit = 0
	}

	for attempt := 0; attempt <= retryLimit; attempt++ {
		citation, err := citations.Get(ctx, id)
		if err != nil {
			return false, err
		}

		patch, ok := compute(citation)
		if !ok {
			return false, nil
		}
		if patch.IsEmpty() {
			return false, nil
		}

		err = citations.CasEdit(ctx, id, citation.Version, patch)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return false, err
		}

		if metrics != nil {
			metrics.RecordCasConflict(stage)
		}
	}

	if metrics != nil {
		metrics.RecordCasRetriesExhausted(stage)
	}
	return false, fmt.Errorf("citation %s: %w after %d attempts", id, domain.ErrConcurrencyConflict, retryLimit+1)
}
