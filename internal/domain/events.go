package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for citation lifecycle events published to the broker.
const (
	EventTypeEnrichmentRequested = "citation.enrichment_requested"
	EventTypeEnrichmentReset     = "citation.enrichment_reset"
	EventTypeCitationEnriched    = "citation.enriched"
)

// AggregateTypeCitation is the aggregate type carried on citation events.
const AggregateTypeCitation = "citation"

// CitationEvent is the envelope for citation lifecycle events.
type CitationEvent struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	SubmissionID  string          `json:"submission_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewCitationEvent creates an event for the given citation with the payload
// JSON-serialized.
func NewCitationEvent(eventType string, citationID, submissionID uuid.UUID, payload interface{}) (*CitationEvent, error) {
	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	return &CitationEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   citationID.String(),
		AggregateType: AggregateTypeCitation,
		SubmissionID:  submissionID.String(),
		Payload:       payloadBytes,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// EnrichmentRequestedPayload is the payload for citation.enrichment_requested events.
type EnrichmentRequestedPayload struct {
	Reason     string `json:"reason"`
	WorkflowID string `json:"workflow_id,omitempty"`
}

// EnrichedPayload is the payload for citation.enriched events.
type EnrichedPayload struct {
	Stage       string `json:"stage"`
	DOI         string `json:"doi,omitempty"`
	Title       string `json:"title,omitempty"`
	AuthorCount int    `json:"author_count"`
}
