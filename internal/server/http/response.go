package httpserver

import (
	"strings"
	"time"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/temporal"
)

// Citation response types for JSON serialization.

type citationResponse struct {
	ID              string               `json:"id"`
	SubmissionID    string               `json:"submission_id"`
	RawText         string               `json:"raw_text"`
	EditedText      string               `json:"edited_text,omitempty"`
	Identifiers     *identifiersResponse `json:"identifiers,omitempty"`
	Authors         []authorResponse     `json:"authors,omitempty"`
	Title           string               `json:"title,omitempty"`
	Venue           string               `json:"venue,omitempty"`
	Journal         string               `json:"journal,omitempty"`
	Volume          string               `json:"volume,omitempty"`
	Issue           string               `json:"issue,omitempty"`
	Pages           string               `json:"pages,omitempty"`
	PublicationYear int                  `json:"publication_year,omitempty"`
	URL             string               `json:"url,omitempty"`
	ProcessingStage string               `json:"processing_stage"`
	IsProcessed     bool                 `json:"is_processed"`
	Version         int64                `json:"version"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type identifiersResponse struct {
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
	Handle  string `json:"handle,omitempty"`
}

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

type listCitationsResponse struct {
	Citations     []citationResponse `json:"citations"`
	NextPageToken string             `json:"next_page_token,omitempty"`
	TotalCount    int                `json:"total_count"`
}

type enrichCitationResponse struct {
	CitationID string `json:"citation_id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id,omitempty"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

type failedEnrichmentResponse struct {
	CitationID string    `json:"citation_id,omitempty"`
	WorkflowID string    `json:"workflow_id"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FailedAt   time.Time `json:"failed_at"`
}

type listFailedEnrichmentsResponse struct {
	Failed     []failedEnrichmentResponse `json:"failed"`
	TotalCount int                        `json:"total_count"`
}

// Converter functions

func domainCitationToResponse(c *domain.Citation) citationResponse {
	resp := citationResponse{
		ID:              c.ID.String(),
		SubmissionID:    c.SubmissionID.String(),
		RawText:         c.RawText,
		EditedText:      c.EditedText,
		Title:           c.Title,
		Venue:           c.Venue,
		Journal:         c.Journal,
		Volume:          c.Volume,
		Issue:           c.Issue,
		Pages:           c.Pages,
		PublicationYear: c.PublicationYear,
		URL:             c.URL,
		ProcessingStage: c.ProcessingStage.String(),
		IsProcessed:     c.IsProcessed,
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}

	if !c.Identifiers.Empty() {
		resp.Identifiers = &identifiersResponse{
			DOI:     c.Identifiers.DOI,
			ArXivID: c.Identifiers.ArXivID,
			Handle:  c.Identifiers.Handle,
		}
	}

	if len(c.Authors) > 0 {
		authors := make([]authorResponse, len(c.Authors))
		for i, a := range c.Authors {
			authors[i] = authorResponse{
				Name:        a.Name,
				Affiliation: a.Affiliation,
				ORCID:       a.ORCID,
			}
		}
		resp.Authors = authors
	}

	return resp
}

func failedEnrichmentToResponse(f temporal.FailedEnrichment) failedEnrichmentResponse {
	return failedEnrichmentResponse{
		CitationID: citationIDFromWorkflowID(f.WorkflowID),
		WorkflowID: f.WorkflowID,
		RunID:      f.RunID,
		StartedAt:  f.StartTime,
		FailedAt:   f.CloseTime,
	}
}

// citationIDFromWorkflowID recovers the citation ID from the deterministic
// workflow ID format produced by temporal.EnrichmentWorkflowID. Returns an
// empty string if the workflow ID does not match the expected shape.
func citationIDFromWorkflowID(workflowID string) string {
	const prefix = "citation-enrich-"
	if !strings.HasPrefix(workflowID, prefix) {
		return ""
	}
	return strings.TrimPrefix(workflowID, prefix)
}
