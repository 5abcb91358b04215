package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/repository"
	"github.com/helixir/citation-enrichment-service/internal/temporal"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// createCitationRequest is the JSON request body for creating a citation.
// Citations are normally created when a submission's reference list is
// parsed; this endpoint covers manual additions by editors.
type createCitationRequest struct {
	RawText    string                `json:"raw_text" validate:"required,min=3,max=10000"`
	EditedText string                `json:"edited_text,omitempty" validate:"omitempty,max=10000"`
	Authors    []citationAuthorInput `json:"authors,omitempty" validate:"omitempty,max=200,dive"`
}

type citationAuthorInput struct {
	Name        string `json:"name" validate:"required,max=500"`
	Affiliation string `json:"affiliation,omitempty" validate:"omitempty,max=500"`
	ORCID       string `json:"orcid,omitempty" validate:"omitempty,max=64"`
}

// enrichCitationRequest is the JSON request body for triggering enrichment.
type enrichCitationRequest struct {
	Reason string `json:"reason" validate:"required,oneof=initial reprocess"`
}

// createCitation handles POST /submissions/{submissionID}/citations.
func (s *Server) createCitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionID, ok := parseUUID(w, chi.URLParam(r, "submissionID"), "submission_id")
	if !ok {
		return
	}

	var req createCitationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	authors := make([]domain.CitationAuthor, len(req.Authors))
	for i, a := range req.Authors {
		authors[i] = domain.CitationAuthor{
			Name:        strings.TrimSpace(a.Name),
			Affiliation: strings.TrimSpace(a.Affiliation),
			ORCID:       strings.TrimSpace(a.ORCID),
		}
	}

	now := time.Now().UTC()
	citation := &domain.Citation{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		RawText:      strings.TrimSpace(req.RawText),
		EditedText:   strings.TrimSpace(req.EditedText),
		Authors:      authors,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.citations.Create(ctx, citation); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainCitationToResponse(citation))
}

// getCitation handles GET /submissions/{submissionID}/citations/{citationID}.
func (s *Server) getCitation(w http.ResponseWriter, r *http.Request) {
	citation, ok := s.fetchOwnedCitation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domainCitationToResponse(citation))
}

// deleteCitation handles DELETE /submissions/{submissionID}/citations/{citationID}.
// Deleting a citation mid-enrichment is safe: subsequent stage writes fail
// NotFound and the run fails fatally instead of retrying.
func (s *Server) deleteCitation(w http.ResponseWriter, r *http.Request) {
	citation, ok := s.fetchOwnedCitation(w, r)
	if !ok {
		return
	}

	if err := s.citations.Delete(r.Context(), citation.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listCitations handles GET /submissions/{submissionID}/citations.
// Supports filtering by processed state, stage, and creation time.
func (s *Server) listCitations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionID, ok := parseUUID(w, chi.URLParam(r, "submissionID"), "submission_id")
	if !ok {
		return
	}

	limit, offset := parsePaginationParams(r)
	filter := repository.CitationFilter{
		Limit:  limit,
		Offset: offset,
	}

	if processedParam := r.URL.Query().Get("processed"); processedParam != "" {
		processed, err := strconv.ParseBool(processedParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "processed must be true or false")
			return
		}
		filter.Processed = &processed
	}

	if stageParam := r.URL.Query().Get("stage"); stageParam != "" {
		stage, ok := parseStageParam(stageParam)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown stage filter")
			return
		}
		filter.Stage = &stage
	}

	if createdAfter := r.URL.Query().Get("created_after"); createdAfter != "" {
		t, parseErr := time.Parse(time.RFC3339, createdAfter)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_after format: expected RFC3339")
			return
		}
		filter.CreatedAfter = &t
	}

	citations, totalCount, err := s.citations.ListBySubmission(ctx, submissionID, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]citationResponse, len(citations))
	for i, c := range citations {
		items[i] = domainCitationToResponse(c)
	}

	writeJSON(w, http.StatusOK, listCitationsResponse{
		Citations:     items,
		NextPageToken: encodeHTTPPageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// enrichCitation handles POST /submissions/{submissionID}/citations/{citationID}/enrich.
// It starts the enrichment workflow for the citation. A reprocess reason is
// accepted for already processed citations; the workflow resets the processed
// state before re-running the stages.
func (s *Server) enrichCitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citation, ok := s.fetchOwnedCitation(w, r)
	if !ok {
		return
	}

	var req enrichCitationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	reason := domain.EnrichmentReason(req.Reason)

	if citation.IsProcessed && reason != domain.ReasonReprocess {
		writeError(w, http.StatusConflict, "citation is already processed; use reason reprocess to re-run")
		return
	}

	workflowID, runID, err := s.workflowClient.StartEnrichmentWorkflow(ctx, temporal.EnrichmentWorkflowInput{
		CitationID:   citation.ID,
		SubmissionID: citation.SubmissionID,
		Reason:       reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordEnrichmentStarted(string(reason))
	}
	s.publishEnrichmentRequested(r, citation, reason, workflowID)

	writeJSON(w, http.StatusAccepted, enrichCitationResponse{
		CitationID: citation.ID.String(),
		WorkflowID: workflowID,
		RunID:      runID,
		Reason:     string(reason),
		Message:    "enrichment started",
	})
}

// publishEnrichmentRequested emits a citation.enrichment_requested event.
// Publishing is fire-and-forget: a broker failure never fails the request.
func (s *Server) publishEnrichmentRequested(r *http.Request, citation *domain.Citation, reason domain.EnrichmentReason, workflowID string) {
	if s.publisher == nil {
		return
	}

	event, err := domain.NewCitationEvent(domain.EventTypeEnrichmentRequested, citation.ID, citation.SubmissionID, domain.EnrichmentRequestedPayload{
		Reason:     string(reason),
		WorkflowID: workflowID,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("citation_id", citation.ID.String()).Msg("build enrichment requested event")
		return
	}
	if err := s.publisher.Publish(r.Context(), event); err != nil {
		s.logger.Warn().Err(err).Str("citation_id", citation.ID.String()).Msg("publish enrichment requested event")
	}
}

// listFailedEnrichments handles GET /enrichment/failed.
// It returns the dead-letter view: enrichment workflow runs that exhausted
// their retries and closed in Failed status.
func (s *Server) listFailedEnrichments(w http.ResponseWriter, r *http.Request) {
	pageSize := defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			pageSize = parsed
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	failed, err := s.workflowClient.ListFailedEnrichments(r.Context(), pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]failedEnrichmentResponse, len(failed))
	for i, f := range failed {
		items[i] = failedEnrichmentToResponse(f)
	}

	writeJSON(w, http.StatusOK, listFailedEnrichmentsResponse{
		Failed:     items,
		TotalCount: len(items),
	})
}

// fetchOwnedCitation parses the submission and citation IDs from the URL,
// loads the citation, and verifies it belongs to the submission. A citation
// that exists under a different submission is reported as not found rather
// than leaking its existence.
func (s *Server) fetchOwnedCitation(w http.ResponseWriter, r *http.Request) (*domain.Citation, bool) {
	submissionID, ok := parseUUID(w, chi.URLParam(r, "submissionID"), "submission_id")
	if !ok {
		return nil, false
	}
	citationID, ok := parseUUID(w, chi.URLParam(r, "citationID"), "citation_id")
	if !ok {
		return nil, false
	}

	citation, err := s.citations.Get(r.Context(), citationID)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if citation.SubmissionID != submissionID {
		writeError(w, http.StatusNotFound, "resource not found")
		return nil, false
	}

	return citation, true
}

// decodeAndValidate reads the request body into v and runs struct validation.
// It writes a 400 response and returns false on any failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}

	return true
}

// validationMessage renders the first validation failure as a client-facing
// message without echoing the offending value back.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", jsonFieldName(fe))
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", jsonFieldName(fe), strings.ReplaceAll(fe.Param(), " ", ", "))
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", jsonFieldName(fe), fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s long", jsonFieldName(fe), fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", jsonFieldName(fe))
		}
	}
	return "invalid request"
}

// jsonFieldName converts a validator field reference to its snake_case JSON name.
func jsonFieldName(fe validator.FieldError) string {
	var b strings.Builder
	for i, r := range fe.Field() {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// writeDomainError maps domain and temporal errors to appropriate HTTP status
// codes and writes a JSON error response. Internal error details are not
// leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "citation was modified concurrently")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "enrichment already running for this citation")
	case errors.Is(err, temporal.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid enrichment request")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// Returns the parsed UUID and true on success, or uuid.Nil and false on failure.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parseStageParam maps a stage filter value to its ProcessingStage ordinal.
func parseStageParam(s string) (domain.ProcessingStage, bool) {
	switch s {
	case "none":
		return domain.StageNone, true
	case "identifiers_extracted":
		return domain.StageIdentifiersExtracted, true
	case "identities_resolved":
		return domain.StageIdentitiesResolved, true
	default:
		return domain.StageNone, false
	}
}

// parsePaginationParams extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodeHTTPPageToken encodes the next offset as a base64 page token.
// Returns an empty string if there are no more results.
func encodeHTTPPageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
