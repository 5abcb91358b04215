// Package activities provides Temporal activity implementations for the
// citation enrichment pipeline.
//
// Activity inputs and outputs are defined as serializable structs that cross
// the Temporal serialization boundary. Each activity receives an input struct
// and returns an output struct (or error). All fields must be exported for
// JSON serialization by the Temporal SDK's default data converter.
//
// Every activity re-fetches its citation and evaluates eligibility at
// execution time. Stage writes go through the version-guarded CasEdit
// contract with a bounded local conflict-retry loop; exhaustion surfaces as a
// retryable failure so Temporal reschedules the whole stage.
package activities

import (
	"github.com/google/uuid"
)

// ExtractIdentifiersInput contains the parameters for the identifier
// extraction activity.
type ExtractIdentifiersInput struct {
	// CitationID is the citation to extract identifiers for.
	CitationID uuid.UUID
}

// ExtractIdentifiersOutput contains the results of the identifier extraction
// activity.
type ExtractIdentifiersOutput struct {
	// Applied reports whether a stage write was committed. False means the
	// citation was ineligible and nothing was written.
	Applied bool

	// DOI, ArXivID, and Handle are the identifiers matched in the citation
	// text. Empty string means the kind was not found.
	DOI     string
	ArXivID string
	Handle  string
}

// ResolveBibliographicInput contains the parameters for a bibliographic
// resolution activity.
type ResolveBibliographicInput struct {
	// CitationID is the citation to resolve bibliographic metadata for.
	CitationID uuid.UUID
}

// ResolveBibliographicOutput contains the results of a bibliographic
// resolution activity.
type ResolveBibliographicOutput struct {
	// Applied reports whether registry metadata was merged into the citation.
	Applied bool

	// Registry is the name of the registry that was queried, empty when the
	// activity skipped without a call.
	Registry string

	// StatusCode is the raw HTTP status the registry answered with, zero when
	// no call was made.
	StatusCode int

	// Title is the resolved work title, for logging and workflow summaries.
	Title string
}

// ResolveAuthorIdentitiesInput contains the parameters for the author
// identity resolution activity.
type ResolveAuthorIdentitiesInput struct {
	// CitationID is the citation whose authors should be resolved.
	CitationID uuid.UUID
}

// ResolveAuthorIdentitiesOutput contains the results of the author identity
// resolution activity.
type ResolveAuthorIdentitiesOutput struct {
	// Applied reports whether the authors array was committed.
	Applied bool

	// Resolved is the number of authors whose identity record was found and
	// patched in.
	Resolved int

	// Cleared is the number of authors whose identity reference the registry
	// did not know and was therefore cleared.
	Cleared int

	// Skipped is the number of authors that carried no identity reference or
	// answered with a status outside the handled vocabulary.
	Skipped int
}

// MarkProcessedInput contains the parameters for the completion marker
// activity.
type MarkProcessedInput struct {
	// CitationID is the citation to mark as terminally processed.
	CitationID uuid.UUID
}

// MarkProcessedOutput contains the results of the completion marker activity.
type MarkProcessedOutput struct {
	// Applied reports whether the marker was written. False means the
	// citation was already processed.
	Applied bool
}

// ResetForReprocessInput contains the parameters for the reprocess reset
// activity.
type ResetForReprocessInput struct {
	// CitationID is the citation to reset.
	CitationID uuid.UUID
}

// PublishEnrichmentEventInput contains the parameters for the lifecycle event
// publishing activity.
type PublishEnrichmentEventInput struct {
	// CitationID is the citation the event describes.
	CitationID uuid.UUID

	// EventType is one of the domain event type constants
	// (domain.EventTypeCitationEnriched, domain.EventTypeEnrichmentReset).
	EventType string
}
