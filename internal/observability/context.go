package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	citationIDKey   contextKey = "citation_id"
	submissionIDKey contextKey = "submission_id"
	traceIDKey      contextKey = "trace_id"
	spanIDKey       contextKey = "span_id"
	workflowIDKey   contextKey = "workflow_id"
	runIDKey        contextKey = "workflow_run_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithCitation adds citation and submission IDs to the context.
func WithCitation(ctx context.Context, citationID, submissionID string) context.Context {
	ctx = context.WithValue(ctx, citationIDKey, citationID)
	ctx = context.WithValue(ctx, submissionIDKey, submissionID)
	return ctx
}

// CitationFromContext retrieves citation and submission IDs from context.
// Returns empty strings if not present.
func CitationFromContext(ctx context.Context) (citationID, submissionID string) {
	if v := ctx.Value(citationIDKey); v != nil {
		if id, ok := v.(string); ok {
			citationID = id
		}
	}
	if v := ctx.Value(submissionIDKey); v != nil {
		if id, ok := v.(string); ok {
			submissionID = id
		}
	}
	return citationID, submissionID
}

// WithTraceSpan adds trace and span IDs to the context.
func WithTraceSpan(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return ctx
}

// TraceSpanFromContext retrieves trace and span IDs from context.
// Returns empty strings if not present.
func TraceSpanFromContext(ctx context.Context) (traceID, spanID string) {
	if v := ctx.Value(traceIDKey); v != nil {
		if id, ok := v.(string); ok {
			traceID = id
		}
	}
	if v := ctx.Value(spanIDKey); v != nil {
		if id, ok := v.(string); ok {
			spanID = id
		}
	}
	return traceID, spanID
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	ctx = context.WithValue(ctx, runIDKey, runID)
	return ctx
}

// WorkflowFromContext retrieves workflow ID and run ID from context.
// Returns empty strings if not present.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	if v := ctx.Value(workflowIDKey); v != nil {
		if id, ok := v.(string); ok {
			workflowID = id
		}
	}
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			runID = id
		}
	}
	return workflowID, runID
}

// EnrichmentContext contains all the context data for a citation enrichment.
type EnrichmentContext struct {
	RequestID    string
	CitationID   string
	SubmissionID string
	TraceID      string
	SpanID       string
	WorkflowID   string
	RunID        string
}

// WithEnrichmentContextFull adds all enrichment context to the context.
func WithEnrichmentContextFull(ctx context.Context, ec EnrichmentContext) context.Context {
	if ec.RequestID != "" {
		ctx = WithRequestID(ctx, ec.RequestID)
	}
	if ec.CitationID != "" || ec.SubmissionID != "" {
		ctx = WithCitation(ctx, ec.CitationID, ec.SubmissionID)
	}
	if ec.TraceID != "" || ec.SpanID != "" {
		ctx = WithTraceSpan(ctx, ec.TraceID, ec.SpanID)
	}
	if ec.WorkflowID != "" || ec.RunID != "" {
		ctx = WithWorkflow(ctx, ec.WorkflowID, ec.RunID)
	}
	return ctx
}

// EnrichmentContextFromContext extracts all enrichment context from the context.
func EnrichmentContextFromContext(ctx context.Context) EnrichmentContext {
	citationID, submissionID := CitationFromContext(ctx)
	traceID, spanID := TraceSpanFromContext(ctx)
	workflowID, runID := WorkflowFromContext(ctx)

	return EnrichmentContext{
		RequestID:    RequestIDFromContext(ctx),
		CitationID:   citationID,
		SubmissionID: submissionID,
		TraceID:      traceID,
		SpanID:       spanID,
		WorkflowID:   workflowID,
		RunID:        runID,
	}
}
