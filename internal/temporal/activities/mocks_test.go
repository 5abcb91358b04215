package activities

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/registries"
	"github.com/helixir/citation-enrichment-service/internal/repository"
)

// ---------------------------------------------------------------------------
// Mock: CitationRepository
// ---------------------------------------------------------------------------

type mockCitationRepository struct {
	mock.Mock
}

func (m *mockCitationRepository) Create(ctx context.Context, citation *domain.Citation) error {
	args := m.Called(ctx, citation)
	return args.Error(0)
}

func (m *mockCitationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Citation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Citation), args.Error(1)
}

func (m *mockCitationRepository) CasEdit(ctx context.Context, id uuid.UUID, expectedVersion int64, patch repository.CitationPatch) error {
	args := m.Called(ctx, id, expectedVersion, patch)
	return args.Error(0)
}

func (m *mockCitationRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID, filter repository.CitationFilter) ([]*domain.Citation, int64, error) {
	args := m.Called(ctx, submissionID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Citation), args.Get(1).(int64), args.Error(2)
}

func (m *mockCitationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Fake registry sources
// ---------------------------------------------------------------------------

// fakeBibliographicSource answers every ResolveByDOI call with a canned
// result and counts the calls.
type fakeBibliographicSource struct {
	name    string
	enabled bool
	record  *registries.WorkRecord
	status  int
	err     error
	calls   int
}

func (f *fakeBibliographicSource) ResolveByDOI(ctx context.Context, doi string) (*registries.WorkRecord, int, error) {
	f.calls++
	return f.record, f.status, f.err
}

func (f *fakeBibliographicSource) Name() string { return f.name }

func (f *fakeBibliographicSource) IsEnabled() bool { return f.enabled }

// identityResult is one canned answer keyed by identity reference.
type identityResult struct {
	person *registries.PersonRecord
	status int
	err    error
}

// fakeIdentitySource answers ResolveID from a per-identifier result table and
// records the order identifiers were asked in.
type fakeIdentitySource struct {
	enabled bool
	results map[string]identityResult
	asked   []string
}

func (f *fakeIdentitySource) ResolveID(ctx context.Context, orcid string) (*registries.PersonRecord, int, error) {
	f.asked = append(f.asked, orcid)
	r, ok := f.results[orcid]
	if !ok {
		return nil, 404, nil
	}
	return r.person, r.status, r.err
}

func (f *fakeIdentitySource) Name() string { return "orcid" }

func (f *fakeIdentitySource) IsEnabled() bool { return f.enabled }

// ---------------------------------------------------------------------------
// Fake event publisher
// ---------------------------------------------------------------------------

type fakePublisher struct {
	published  []*domain.CitationEvent
	publishErr error
}

func (f *fakePublisher) Publish(ctx context.Context, event *domain.CitationEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }
