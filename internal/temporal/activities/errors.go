package activities

import (
	"net/http"

	"go.temporal.io/sdk/temporal"
)

// Application error types carried on activity failures. The workflow's retry
// policies list ErrTypeFatalInput as non-retryable; everything typed
// ErrTypeTransientService is retried with the policy's backoff until the
// attempt budget is exhausted.
const (
	// ErrTypeFatalInput marks failures no retry can fix, such as an unknown
	// citation ID.
	ErrTypeFatalInput = "fatal_input"

	// ErrTypeTransientService marks failures worth retrying: registry
	// timeouts, transport errors, and exhausted conflict-retry budgets.
	ErrTypeTransientService = "transient_service"
)

// Stage names used for metrics labels and log fields.
const (
	stageExtraction = "extract_identifiers"
	stageCrossref   = "resolve_crossref"
	stageOpenAlex   = "resolve_openalex"
	stageIdentities = "resolve_author_identities"
	stageCompletion = "mark_processed"
	stageReset      = "reset_for_reprocess"
)

// Stage execution outcomes recorded in metrics.
const (
	outcomeApplied = "applied"
	outcomeSkipped = "skipped"
	outcomeNoOp    = "no_op"
	outcomeFailed  = "failed"
)

// fatalInputError builds a non-retryable activity failure.
func fatalInputError(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, ErrTypeFatalInput, cause)
}

// transientError builds a retryable activity failure.
func transientError(msg string, cause error) error {
	return temporal.NewApplicationError(msg, ErrTypeTransientService, cause)
}

// statusSuccess reports whether a registry status code means the lookup
// succeeded and the record should be merged.
func statusSuccess(code int) bool {
	return code >= 200 && code < 300
}

// statusRetryable reports whether a registry status code means the lookup
// should be retried by the stage's retry policy. Only request timeout and
// gateway timeout qualify; every other non-2xx status besides not-found is a
// silent no-op.
func statusRetryable(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout
}
