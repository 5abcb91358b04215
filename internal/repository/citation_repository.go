package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// CitationRepository handles citation persistence and version-guarded edits.
// Enrichment stages never hold row locks across external calls; instead every
// write carries the version the writer last observed, and the repository
// rejects the write if the row has moved on.
type CitationRepository interface {
	// Create inserts a new citation.
	// The citation must have a valid ID, SubmissionID, and RawText.
	// Returns domain.ErrAlreadyExists if a citation with the same ID already exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, citation *domain.Citation) error

	// Get retrieves a citation by its ID.
	// Returns domain.ErrNotFound if no matching citation exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.Citation, error)

	// CasEdit applies a field patch to a citation guarded by the expected version.
	// Only fields set on the patch are written; every other column is untouched.
	// On success the row version is incremented by exactly one.
	//
	// Returns domain.ErrNotFound if the citation does not exist.
	// Returns domain.ErrConcurrencyConflict if the citation exists but its
	// version no longer matches expectedVersion. Callers are expected to
	// re-read the citation, recompute the patch, and retry a bounded number
	// of times.
	CasEdit(ctx context.Context, id uuid.UUID, expectedVersion int64, patch CitationPatch) error

	// ListBySubmission retrieves citations belonging to a submission.
	// Returns the matching citations and total count for pagination.
	ListBySubmission(ctx context.Context, submissionID uuid.UUID, filter CitationFilter) ([]*domain.Citation, int64, error)

	// Delete removes a citation by its ID.
	// Returns domain.ErrNotFound if no matching citation exists.
	Delete(ctx context.Context, id uuid.UUID) error
}

// CitationPatch describes a partial update to a citation. A nil field means
// "leave the column alone"; a non-nil field is written verbatim, so setting a
// pointer to the zero value clears the column. Stages patch only the fields
// they own, which keeps concurrent stage writes disjoint.
type CitationPatch struct {
	// EditedText replaces the human-corrected citation text.
	EditedText *string

	// DOI, ArXivID, and Handle are the persistent identifier fields owned by
	// the extraction stage.
	DOI     *string
	ArXivID *string
	Handle  *string

	// Authors replaces the full author list.
	Authors *[]domain.CitationAuthor

	// Bibliographic fields owned by the registry resolution stages.
	Title           *string
	Venue           *string
	Journal         *string
	Volume          *string
	Issue           *string
	Pages           *string
	PublicationYear *int
	URL             *string

	// ProcessingStage advances the stage marker. Writers must never move the
	// marker backwards except through a reprocess reset.
	ProcessingStage *domain.ProcessingStage

	// IsProcessed marks the citation as terminally processed.
	IsProcessed *bool
}

// IsEmpty reports whether the patch sets no fields at all.
func (p CitationPatch) IsEmpty() bool {
	return p.EditedText == nil &&
		p.DOI == nil && p.ArXivID == nil && p.Handle == nil &&
		p.Authors == nil &&
		p.Title == nil && p.Venue == nil && p.Journal == nil &&
		p.Volume == nil && p.Issue == nil && p.Pages == nil &&
		p.PublicationYear == nil && p.URL == nil &&
		p.ProcessingStage == nil && p.IsProcessed == nil
}

// CitationFilter specifies criteria for listing citations.
type CitationFilter struct {
	// Processed filters by terminal processed state (optional).
	Processed *bool

	// Stage filters by processing stage (optional).
	Stage *domain.ProcessingStage

	// CreatedAfter filters to citations created after this timestamp (optional).
	CreatedAfter *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks the filter and normalizes pagination values.
func (f *CitationFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}

// Helper constructors for patch fields. These keep activity code free of
// one-off pointer temporaries.

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// StagePtr returns a pointer to stage.
func StagePtr(stage domain.ProcessingStage) *domain.ProcessingStage { return &stage }

// AuthorsPtr returns a pointer to the given author slice.
func AuthorsPtr(authors []domain.CitationAuthor) *[]domain.CitationAuthor { return &authors }
