// Package workflows provides the Temporal workflow definitions for the
// citation enrichment pipeline.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/temporal/activities"
)

// EnrichmentInput is the input for the citation enrichment workflow. The
// field set mirrors the client package's EnrichmentWorkflowInput; the two
// types stay separate so the client can start the workflow by name without
// importing this package.
type EnrichmentInput struct {
	// CitationID identifies the citation to enrich.
	CitationID uuid.UUID

	// SubmissionID identifies the submission the citation belongs to.
	SubmissionID uuid.UUID

	// Reason describes why the run was triggered (initial or reprocess).
	Reason domain.EnrichmentReason

	// StageAttempts bounds the retry attempts per external-call stage.
	// Zero means the default.
	StageAttempts int

	// StageTimeout is the start-to-close timeout per external-call stage.
	// Zero means the default.
	StageTimeout time.Duration
}

// Defaults for the external-call stage retry policy when the input carries
// no tuning of its own.
const (
	defaultStageAttempts = 4
	defaultStageTimeout  = 1 * time.Minute
)

// registryActivityOptions builds the activity options for stages that call
// external registries. These stages get a longer budget and more attempts
// than the store-only stages, tunable per run through the input.
func registryActivityOptions(input EnrichmentInput) workflow.ActivityOptions {
	attempts := int32(defaultStageAttempts)
	if input.StageAttempts > 0 {
		attempts = int32(input.StageAttempts)
	}
	timeout := defaultStageTimeout
	if input.StageTimeout > 0 {
		timeout = input.StageTimeout
	}

	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        1 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        attempts,
			NonRetryableErrorTypes: []string{activities.ErrTypeFatalInput},
		},
	}
}

// EnrichmentResult summarizes one enrichment run.
type EnrichmentResult struct {
	// CitationID is the citation that was enriched.
	CitationID uuid.UUID

	// ExtractionApplied reports whether the identifier extraction stage wrote.
	ExtractionApplied bool

	// CrossrefApplied and OpenAlexApplied report whether the bibliographic
	// stages merged registry metadata.
	CrossrefApplied bool
	OpenAlexApplied bool

	// AuthorsResolved and AuthorsCleared count author identity outcomes.
	AuthorsResolved int
	AuthorsCleared  int

	// Completed reports whether the terminal processed marker was written.
	Completed bool

	// StageErrors lists stages whose failure was absorbed.
	StageErrors []string
}

// CitationEnrichmentWorkflow runs the enrichment pipeline for one citation:
//
//  0. Reset (reprocess runs only): clear the terminal marker and rewind the
//     stage ordinal. This is the only load-bearing step; its failure fails
//     the workflow.
//  1. Identifier extraction.
//  2. Crossref resolution, OpenAlex resolution, and author identity
//     resolution as concurrent futures with no ordering between them.
//  3. Completion marker.
//  4. Terminal lifecycle event.
//
// Every stage after the reset is fail-open: exhausting a retry policy is
// logged, recorded on the result, and absorbed so one slow registry never
// blocks the others or the completion marker. The exception is a fatal-input
// failure (citation deleted mid-flight), which fails the whole run.
func CitationEnrichmentWorkflow(ctx workflow.Context, input EnrichmentInput) (*EnrichmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting citation enrichment",
		"citationID", input.CitationID,
		"reason", input.Reason,
	)

	if input.CitationID == uuid.Nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"citation ID is required", activities.ErrTypeFatalInput, nil)
	}
	if !input.Reason.Valid() {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown enrichment reason %q", input.Reason), activities.ErrTypeFatalInput, nil)
	}

	result := &EnrichmentResult{CitationID: input.CitationID}

	// Activity pointers for method references
	var extractionAct *activities.ExtractionActivities
	var bibliographicAct *activities.BibliographicActivities
	var identityAct *activities.IdentityActivities
	var lifecycleAct *activities.LifecycleActivities

	registryCtx := workflow.WithActivityOptions(ctx, registryActivityOptions(input))

	storeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        500 * time.Millisecond,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        4,
			NonRetryableErrorTypes: []string{activities.ErrTypeFatalInput},
		},
	})

	eventCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    2,
		},
	})

	// Reset first on reprocess runs. A reprocess that cannot rewind the
	// record must not fall through to stages that would all skip.
	if input.Reason == domain.ReasonReprocess {
		err := workflow.ExecuteActivity(storeCtx, lifecycleAct.ResetForReprocess, activities.ResetForReprocessInput{
			CitationID: input.CitationID,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("reset for reprocess failed", "citationID", input.CitationID, "error", err)
			return nil, fmt.Errorf("reset for reprocess: %w", err)
		}

		err = workflow.ExecuteActivity(eventCtx, lifecycleAct.PublishEnrichmentEvent, activities.PublishEnrichmentEventInput{
			CitationID: input.CitationID,
			EventType:  domain.EventTypeEnrichmentReset,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to publish reset event", "citationID", input.CitationID, "error", err)
		}
	}

	// Identifier extraction runs before the resolution stages so that the
	// bibliographic lookups see the freshly parsed DOI.
	var extractOutput activities.ExtractIdentifiersOutput
	err := workflow.ExecuteActivity(registryCtx, extractionAct.ExtractIdentifiers, activities.ExtractIdentifiersInput{
		CitationID: input.CitationID,
	}).Get(ctx, &extractOutput)
	if err != nil {
		if isFatalInput(err) {
			return nil, fmt.Errorf("extract identifiers: %w", err)
		}
		logger.Warn("identifier extraction failed, continuing", "citationID", input.CitationID, "error", err)
		result.StageErrors = append(result.StageErrors, "extract_identifiers")
	} else {
		result.ExtractionApplied = extractOutput.Applied
	}

	// The two bibliographic resolutions and the identity resolution run
	// concurrently; each owns a disjoint set of citation fields.
	bibInput := activities.ResolveBibliographicInput{CitationID: input.CitationID}
	crossrefFuture := workflow.ExecuteActivity(registryCtx, bibliographicAct.ResolveCrossref, bibInput)
	openalexFuture := workflow.ExecuteActivity(registryCtx, bibliographicAct.ResolveOpenAlex, bibInput)
	identityFuture := workflow.ExecuteActivity(registryCtx, identityAct.ResolveAuthorIdentities, activities.ResolveAuthorIdentitiesInput{
		CitationID: input.CitationID,
	})

	var crossrefOutput activities.ResolveBibliographicOutput
	if err := crossrefFuture.Get(ctx, &crossrefOutput); err != nil {
		if isFatalInput(err) {
			return nil, fmt.Errorf("resolve crossref: %w", err)
		}
		logger.Warn("crossref resolution failed, continuing", "citationID", input.CitationID, "error", err)
		result.StageErrors = append(result.StageErrors, "resolve_crossref")
	} else {
		result.CrossrefApplied = crossrefOutput.Applied
	}

	var openalexOutput activities.ResolveBibliographicOutput
	if err := openalexFuture.Get(ctx, &openalexOutput); err != nil {
		if isFatalInput(err) {
			return nil, fmt.Errorf("resolve openalex: %w", err)
		}
		logger.Warn("openalex resolution failed, continuing", "citationID", input.CitationID, "error", err)
		result.StageErrors = append(result.StageErrors, "resolve_openalex")
	} else {
		result.OpenAlexApplied = openalexOutput.Applied
	}

	var identityOutput activities.ResolveAuthorIdentitiesOutput
	if err := identityFuture.Get(ctx, &identityOutput); err != nil {
		if isFatalInput(err) {
			return nil, fmt.Errorf("resolve author identities: %w", err)
		}
		logger.Warn("author identity resolution failed, continuing", "citationID", input.CitationID, "error", err)
		result.StageErrors = append(result.StageErrors, "resolve_author_identities")
	} else {
		result.AuthorsResolved = identityOutput.Resolved
		result.AuthorsCleared = identityOutput.Cleared
	}

	// Completion marker last by convention.
	var markOutput activities.MarkProcessedOutput
	err = workflow.ExecuteActivity(storeCtx, lifecycleAct.MarkProcessed, activities.MarkProcessedInput{
		CitationID: input.CitationID,
	}).Get(ctx, &markOutput)
	if err != nil {
		if isFatalInput(err) {
			return nil, fmt.Errorf("mark processed: %w", err)
		}
		logger.Warn("completion marker failed", "citationID", input.CitationID, "error", err)
		result.StageErrors = append(result.StageErrors, "mark_processed")
	} else {
		result.Completed = true

		err = workflow.ExecuteActivity(eventCtx, lifecycleAct.PublishEnrichmentEvent, activities.PublishEnrichmentEventInput{
			CitationID: input.CitationID,
			EventType:  domain.EventTypeCitationEnriched,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to publish enriched event", "citationID", input.CitationID, "error", err)
		}
	}

	logger.Info("citation enrichment completed",
		"citationID", input.CitationID,
		"completed", result.Completed,
		"stageErrors", len(result.StageErrors),
	)

	return result, nil
}

// isFatalInput reports whether an activity failure carries the fatal-input
// application error type.
func isFatalInput(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == activities.ErrTypeFatalInput
	}
	return false
}
