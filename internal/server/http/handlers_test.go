package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/repository"
	"github.com/helixir/citation-enrichment-service/internal/temporal"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockCitationRepo implements repository.CitationRepository for HTTP handler tests.
type mockCitationRepo struct {
	createFn func(ctx context.Context, citation *domain.Citation) error
	getFn    func(ctx context.Context, id uuid.UUID) (*domain.Citation, error)
	casFn    func(ctx context.Context, id uuid.UUID, expectedVersion int64, patch repository.CitationPatch) error
	listFn   func(ctx context.Context, submissionID uuid.UUID, filter repository.CitationFilter) ([]*domain.Citation, int64, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCitationRepo) Create(ctx context.Context, citation *domain.Citation) error {
	if m.createFn != nil {
		return m.createFn(ctx, citation)
	}
	return nil
}

func (m *mockCitationRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Citation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCitationRepo) CasEdit(ctx context.Context, id uuid.UUID, expectedVersion int64, patch repository.CitationPatch) error {
	if m.casFn != nil {
		return m.casFn(ctx, id, expectedVersion, patch)
	}
	return nil
}

func (m *mockCitationRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID, filter repository.CitationFilter) ([]*domain.Citation, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, submissionID, filter)
	}
	return nil, 0, nil
}

func (m *mockCitationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockEnrichmentClient implements WorkflowClient for HTTP handler tests.
type mockEnrichmentClient struct {
	startFn      func(ctx context.Context, input temporal.EnrichmentWorkflowInput) (string, string, error)
	listFailedFn func(ctx context.Context, pageSize int) ([]temporal.FailedEnrichment, error)
	healthFn     func(ctx context.Context) error
}

func (m *mockEnrichmentClient) StartEnrichmentWorkflow(ctx context.Context, input temporal.EnrichmentWorkflowInput) (string, string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, input)
	}
	return temporal.EnrichmentWorkflowID(input.CitationID), "run-test", nil
}

func (m *mockEnrichmentClient) ListFailedEnrichments(ctx context.Context, pageSize int) ([]temporal.FailedEnrichment, error) {
	if m.listFailedFn != nil {
		return m.listFailedFn(ctx, pageSize)
	}
	return nil, nil
}

func (m *mockEnrichmentClient) Health(ctx context.Context) error {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil
}

// mockEventPublisher captures published events for assertions.
type mockEventPublisher struct {
	published  []*domain.CitationEvent
	publishErr error
}

func (m *mockEventPublisher) Publish(_ context.Context, event *domain.CitationEvent) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, event)
	return nil
}

func (m *mockEventPublisher) Close() error { return nil }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestHTTPServer creates a Server configured for testing with mocked dependencies.
func newTestHTTPServer(wfClient WorkflowClient, citations repository.CitationRepository, publisher *mockEventPublisher) *Server {
	s := &Server{
		workflowClient: wfClient,
		citations:      citations,
		logger:         zerolog.Nop(),
		validate:       validator.New(),
	}
	if publisher != nil {
		s.publisher = publisher
	}
	s.router = s.buildRouter()
	return s
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, r)
	return rr
}

// citationsPath returns the full API path for a submission's citations endpoint.
func citationsPath(submissionID uuid.UUID, suffix string) string {
	return "/api/v1/submissions/" + submissionID.String() + "/citations" + suffix
}

// testStoredCitation builds a citation as the store would return it.
func testStoredCitation(id, submissionID uuid.UUID) *domain.Citation {
	now := time.Now().UTC()
	return &domain.Citation{
		ID:           id,
		SubmissionID: submissionID,
		RawText:      "Smith J (2020). Some Title. doi:10.1/xyz",
		Authors: []domain.CitationAuthor{
			{Name: "J. Smith", ORCID: "0000-0000-0000-0001"},
		},
		ProcessingStage: domain.StageNone,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Tests: createCitation
// ---------------------------------------------------------------------------

func TestCreateCitation_Success(t *testing.T) {
	submissionID := uuid.New()
	var created *domain.Citation
	repo := &mockCitationRepo{
		createFn: func(_ context.Context, citation *domain.Citation) error {
			created = citation
			return nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	body := `{"raw_text":"Smith J (2020). Some Title. doi:10.1/xyz","authors":[{"name":"J. Smith","orcid":"0000-0000-0000-0001"}]}`
	req := httptest.NewRequest(http.MethodPost, citationsPath(submissionID, ""), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp citationResponse
	decodeJSON(t, rr, &resp)
	if resp.ID == "" {
		t.Error("expected id to be set")
	}
	if resp.SubmissionID != submissionID.String() {
		t.Errorf("expected submission_id %s, got %s", submissionID, resp.SubmissionID)
	}
	if resp.ProcessingStage != "none" {
		t.Errorf("expected processing_stage none, got %s", resp.ProcessingStage)
	}

	if created == nil {
		t.Fatal("expected createFn to be called")
	}
	if created.SubmissionID != submissionID {
		t.Errorf("expected created citation submission %s, got %s", submissionID, created.SubmissionID)
	}
	if len(created.Authors) != 1 || created.Authors[0].ORCID != "0000-0000-0000-0001" {
		t.Errorf("unexpected created authors: %+v", created.Authors)
	}
}

func TestCreateCitation_MissingRawText(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodPost, citationsPath(uuid.New(), ""), bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["error"] != "raw_text is required" {
		t.Errorf("expected error 'raw_text is required', got %q", resp["error"])
	}
}

func TestCreateCitation_InvalidJSON(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodPost, citationsPath(uuid.New(), ""), bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateCitation_AlreadyExists(t *testing.T) {
	repo := &mockCitationRepo{
		createFn: func(_ context.Context, _ *domain.Citation) error {
			return domain.ErrAlreadyExists
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	body := `{"raw_text":"Smith J (2020). Some Title."}`
	req := httptest.NewRequest(http.MethodPost, citationsPath(uuid.New(), ""), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests: getCitation / deleteCitation
// ---------------------------------------------------------------------------

func TestGetCitation_Success(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, id uuid.UUID) (*domain.Citation, error) {
			if id != citationID {
				return nil, domain.ErrNotFound
			}
			return testStoredCitation(citationID, submissionID), nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	req := httptest.NewRequest(http.MethodGet, citationsPath(submissionID, "/"+citationID.String()), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp citationResponse
	decodeJSON(t, rr, &resp)
	if resp.ID != citationID.String() {
		t.Errorf("expected id %s, got %s", citationID, resp.ID)
	}
	if len(resp.Authors) != 1 || resp.Authors[0].Name != "J. Smith" {
		t.Errorf("unexpected authors: %+v", resp.Authors)
	}
}

func TestGetCitation_NotFound(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, citationsPath(uuid.New(), "/"+uuid.New().String()), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetCitation_WrongSubmissionIsNotFound(t *testing.T) {
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			return testStoredCitation(citationID, uuid.New()), nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	// Request under a submission the citation does not belong to.
	req := httptest.NewRequest(http.MethodGet, citationsPath(uuid.New(), "/"+citationID.String()), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetCitation_InvalidUUID(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, citationsPath(uuid.New(), "/not-a-uuid"), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["error"] != "citation_id must be a valid UUID" {
		t.Errorf("unexpected error message: %q", resp["error"])
	}
}

func TestDeleteCitation_Success(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	var deleted uuid.UUID
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			return testStoredCitation(citationID, submissionID), nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	req := httptest.NewRequest(http.MethodDelete, citationsPath(submissionID, "/"+citationID.String()), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if deleted != citationID {
		t.Errorf("expected delete of %s, got %s", citationID, deleted)
	}
}

func TestDeleteCitation_NotFound(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodDelete, citationsPath(uuid.New(), "/"+uuid.New().String()), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests: listCitations
// ---------------------------------------------------------------------------

func TestListCitations_Success(t *testing.T) {
	submissionID := uuid.New()
	repo := &mockCitationRepo{
		listFn: func(_ context.Context, subID uuid.UUID, _ repository.CitationFilter) ([]*domain.Citation, int64, error) {
			if subID != submissionID {
				t.Errorf("expected submission %s, got %s", submissionID, subID)
			}
			return []*domain.Citation{
				testStoredCitation(uuid.New(), submissionID),
				testStoredCitation(uuid.New(), submissionID),
			}, 2, nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	req := httptest.NewRequest(http.MethodGet, citationsPath(submissionID, ""), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp listCitationsResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(resp.Citations))
	}
	if resp.TotalCount != 2 {
		t.Errorf("expected total_count 2, got %d", resp.TotalCount)
	}
	if resp.NextPageToken != "" {
		t.Errorf("expected empty next_page_token, got %q", resp.NextPageToken)
	}
}

func TestListCitations_WithFilters(t *testing.T) {
	submissionID := uuid.New()
	var captured repository.CitationFilter
	repo := &mockCitationRepo{
		listFn: func(_ context.Context, _ uuid.UUID, filter repository.CitationFilter) ([]*domain.Citation, int64, error) {
			captured = filter
			return nil, 0, nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	req := httptest.NewRequest(http.MethodGet, citationsPath(submissionID, "?processed=false&stage=identifiers_extracted"), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Processed == nil || *captured.Processed {
		t.Error("expected processed=false filter")
	}
	if captured.Stage == nil || *captured.Stage != domain.StageIdentifiersExtracted {
		t.Error("expected stage filter identifiers_extracted")
	}
}

func TestListCitations_InvalidStage(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, citationsPath(uuid.New(), "?stage=bogus"), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListCitations_Pagination(t *testing.T) {
	submissionID := uuid.New()
	var captured repository.CitationFilter
	repo := &mockCitationRepo{
		listFn: func(_ context.Context, _ uuid.UUID, filter repository.CitationFilter) ([]*domain.Citation, int64, error) {
			captured = filter
			citations := make([]*domain.Citation, filter.Limit)
			for i := range citations {
				citations[i] = testStoredCitation(uuid.New(), submissionID)
			}
			return citations, 100, nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	token := base64.StdEncoding.EncodeToString([]byte("20"))
	req := httptest.NewRequest(http.MethodGet, citationsPath(submissionID, "?page_size=10&page_token="+token), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Limit != 10 || captured.Offset != 20 {
		t.Errorf("expected limit 10 offset 20, got limit %d offset %d", captured.Limit, captured.Offset)
	}

	var resp listCitationsResponse
	decodeJSON(t, rr, &resp)
	if resp.NextPageToken == "" {
		t.Fatal("expected next_page_token to be set")
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.NextPageToken)
	if err != nil {
		t.Fatalf("failed to decode page token: %v", err)
	}
	if string(decoded) != "30" {
		t.Errorf("expected next offset 30, got %s", decoded)
	}
}

// ---------------------------------------------------------------------------
// Tests: enrichCitation
// ---------------------------------------------------------------------------

func TestEnrichCitation_Success(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			return testStoredCitation(citationID, submissionID), nil
		},
	}

	var capturedInput temporal.EnrichmentWorkflowInput
	wfClient := &mockEnrichmentClient{
		startFn: func(_ context.Context, input temporal.EnrichmentWorkflowInput) (string, string, error) {
			capturedInput = input
			return temporal.EnrichmentWorkflowID(input.CitationID), "run-abc123", nil
		},
	}
	publisher := &mockEventPublisher{}
	srv := newTestHTTPServer(wfClient, repo, publisher)

	body := `{"reason":"initial"}`
	req := httptest.NewRequest(http.MethodPost, citationsPath(submissionID, "/"+citationID.String()+"/enrich"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp enrichCitationResponse
	decodeJSON(t, rr, &resp)
	if resp.CitationID != citationID.String() {
		t.Errorf("expected citation_id %s, got %s", citationID, resp.CitationID)
	}
	if resp.WorkflowID != temporal.EnrichmentWorkflowID(citationID) {
		t.Errorf("unexpected workflow_id %s", resp.WorkflowID)
	}
	if resp.Reason != "initial" {
		t.Errorf("expected reason initial, got %s", resp.Reason)
	}

	if capturedInput.CitationID != citationID {
		t.Errorf("expected workflow input citation %s, got %s", citationID, capturedInput.CitationID)
	}
	if capturedInput.SubmissionID != submissionID {
		t.Errorf("expected workflow input submission %s, got %s", submissionID, capturedInput.SubmissionID)
	}
	if capturedInput.Reason != domain.ReasonInitial {
		t.Errorf("expected reason initial, got %s", capturedInput.Reason)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.published))
	}
	if publisher.published[0].EventType != domain.EventTypeEnrichmentRequested {
		t.Errorf("unexpected event type %s", publisher.published[0].EventType)
	}
}

func TestEnrichCitation_InvalidReason(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			return testStoredCitation(citationID, submissionID), nil
		},
	}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, nil)

	body := `{"reason":"manual"}`
	req := httptest.NewRequest(http.MethodPost, citationsPath(submissionID, "/"+citationID.String()+"/enrich"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["error"] != "reason must be one of: initial, reprocess" {
		t.Errorf("unexpected error message: %q", resp["error"])
	}
}

func TestEnrichCitation_AlreadyProcessedRequiresReprocess(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			c := testStoredCitation(citationID, submissionID)
			c.IsProcessed = true
			c.ProcessingStage = domain.StageIdentitiesResolved
			return c, nil
		},
	}
	started := false
	wfClient := &mockEnrichmentClient{
		startFn: func(_ context.Context, input temporal.EnrichmentWorkflowInput) (string, string, error) {
			started = true
			return temporal.EnrichmentWorkflowID(input.CitationID), "run-1", nil
		},
	}
	srv := newTestHTTPServer(wfClient, repo, nil)

	req := httptest.NewRequest(http.MethodPost, citationsPath(submissionID, "/"+citationID.String()+"/enrich"), bytes.NewBufferString(`{"reason":"initial"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if started {
		t.Error("expected workflow not to be started")
	}

	// Reprocess on the same processed citation is accepted.
	req = httptest.NewRequest(http.MethodPost, citationsPath(submissionID, "/"+citationID.String()+"/enrich"), bytes.NewBufferString(`{"reason":"reprocess"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = serveHTTP(srv, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if !started {
		t.Error("expected workflow to be started")
	}
}

func TestEnrichCitation_WorkflowAlreadyStarted(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			return testStoredCitation(citationID, submissionID), nil
		},
	}
	wfClient := &mockEnrichmentClient{
		startFn: func(_ context.Context, _ temporal.EnrichmentWorkflowInput) (string, string, error) {
			return "", "", &temporal.TemporalError{
				Op:   "StartEnrichmentWorkflow",
				Kind: temporal.ErrWorkflowAlreadyStarted,
			}
		},
	}
	srv := newTestHTTPServer(wfClient, repo, nil)

	req := httptest.NewRequest(http.MethodPost, citationsPath(submissionID, "/"+citationID.String()+"/enrich"), bytes.NewBufferString(`{"reason":"initial"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestEnrichCitation_PublisherFailureStillAccepted(t *testing.T) {
	submissionID := uuid.New()
	citationID := uuid.New()
	repo := &mockCitationRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*domain.Citation, error) {
			return testStoredCitation(citationID, submissionID), nil
		},
	}
	publisher := &mockEventPublisher{publishErr: errors.New("broker down")}
	srv := newTestHTTPServer(&mockEnrichmentClient{}, repo, publisher)

	req := httptest.NewRequest(http.MethodPost, citationsPath(submissionID, "/"+citationID.String()+"/enrich"), bytes.NewBufferString(`{"reason":"initial"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests: listFailedEnrichments
// ---------------------------------------------------------------------------

func TestListFailedEnrichments_Success(t *testing.T) {
	citationID := uuid.New()
	started := time.Now().Add(-time.Hour).UTC()
	closed := started.Add(10 * time.Minute)

	wfClient := &mockEnrichmentClient{
		listFailedFn: func(_ context.Context, pageSize int) ([]temporal.FailedEnrichment, error) {
			if pageSize != defaultPageSize {
				t.Errorf("expected default page size %d, got %d", defaultPageSize, pageSize)
			}
			return []temporal.FailedEnrichment{
				{
					WorkflowID: temporal.EnrichmentWorkflowID(citationID),
					RunID:      "run-failed-1",
					StartTime:  started,
					CloseTime:  closed,
				},
			}, nil
		},
	}
	srv := newTestHTTPServer(wfClient, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrichment/failed", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp listFailedEnrichmentsResponse
	decodeJSON(t, rr, &resp)
	if resp.TotalCount != 1 || len(resp.Failed) != 1 {
		t.Fatalf("expected 1 failed enrichment, got %+v", resp)
	}
	if resp.Failed[0].CitationID != citationID.String() {
		t.Errorf("expected citation_id %s, got %s", citationID, resp.Failed[0].CitationID)
	}
	if resp.Failed[0].RunID != "run-failed-1" {
		t.Errorf("unexpected run_id %s", resp.Failed[0].RunID)
	}
}

func TestListFailedEnrichments_PageSizeCapped(t *testing.T) {
	var capturedSize int
	wfClient := &mockEnrichmentClient{
		listFailedFn: func(_ context.Context, pageSize int) ([]temporal.FailedEnrichment, error) {
			capturedSize = pageSize
			return nil, nil
		},
	}
	srv := newTestHTTPServer(wfClient, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrichment/failed?page_size=1000", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedSize != maxPageSize {
		t.Errorf("expected page size capped at %d, got %d", maxPageSize, capturedSize)
	}
}

func TestListFailedEnrichments_ClientError(t *testing.T) {
	wfClient := &mockEnrichmentClient{
		listFailedFn: func(_ context.Context, _ int) ([]temporal.FailedEnrichment, error) {
			return nil, errors.New("visibility store unavailable")
		},
	}
	srv := newTestHTTPServer(wfClient, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrichment/failed", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests: helpers
// ---------------------------------------------------------------------------

func TestWriteDomainError_Mappings(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict},
		{"concurrency conflict", domain.ErrConcurrencyConflict, http.StatusConflict},
		{"service unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"workflow not found", temporal.ErrWorkflowNotFound, http.StatusNotFound},
		{"workflow already started", temporal.ErrWorkflowAlreadyStarted, http.StatusConflict},
		{"invalid argument", temporal.ErrInvalidArgument, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tc.err)
			if rr.Code != tc.expected {
				t.Errorf("expected status %d, got %d", tc.expected, rr.Code)
			}
		})
	}
}

func TestParsePaginationParams_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	limit, offset := parsePaginationParams(req)
	if limit != defaultPageSize {
		t.Errorf("expected default limit %d, got %d", defaultPageSize, limit)
	}
	if offset != 0 {
		t.Errorf("expected offset 0, got %d", offset)
	}
}

func TestParsePaginationParams_MaxPageSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page_size="+strconv.Itoa(maxPageSize*2), nil)
	limit, _ := parsePaginationParams(req)
	if limit != maxPageSize {
		t.Errorf("expected limit capped at %d, got %d", maxPageSize, limit)
	}
}

func TestEncodeHTTPPageToken(t *testing.T) {
	if token := encodeHTTPPageToken(0, 50, 40); token != "" {
		t.Errorf("expected empty token when all results fit, got %q", token)
	}
	token := encodeHTTPPageToken(0, 50, 120)
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}
	if string(decoded) != "50" {
		t.Errorf("expected offset 50, got %s", decoded)
	}
}

func TestHealthz_NoDatabaseConfigured(t *testing.T) {
	srv := newTestHTTPServer(&mockEnrichmentClient{}, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReadyz_TemporalUnreachable(t *testing.T) {
	wfClient := &mockEnrichmentClient{
		healthFn: func(_ context.Context) error {
			return errors.New("connection refused")
		},
	}
	srv := newTestHTTPServer(wfClient, &mockCitationRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", rr.Code, rr.Body.String())
	}
}
