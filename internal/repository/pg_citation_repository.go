package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation = "23505" // unique_violation
)

// citationColumns is the canonical column list for citation SELECTs.
const citationColumns = `id, submission_id, raw_text, edited_text,
	doi, arxiv_id, handle, authors,
	title, venue, journal, volume, issue, pages, publication_year, url,
	processing_stage, is_processed, version, created_at, updated_at`

// Compile-time interface verification.
var _ CitationRepository = (*PgCitationRepository)(nil)

// PgCitationRepository is a PostgreSQL implementation of CitationRepository.
type PgCitationRepository struct {
	db DBTX
}

// NewPgCitationRepository creates a new PostgreSQL citation repository.
func NewPgCitationRepository(db DBTX) *PgCitationRepository {
	return &PgCitationRepository{db: db}
}

// Create inserts a new citation.
func (r *PgCitationRepository) Create(ctx context.Context, citation *domain.Citation) error {
	if citation == nil {
		return domain.NewValidationError("citation", "citation cannot be nil")
	}
	if citation.ID == uuid.Nil {
		return domain.NewValidationError("id", "citation ID is required")
	}
	if citation.SubmissionID == uuid.Nil {
		return domain.NewValidationError("submission_id", "submission ID is required")
	}
	if citation.RawText == "" {
		return domain.NewValidationError("raw_text", "raw citation text is required")
	}

	authorsJSON, err := json.Marshal(citation.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	if citation.Version == 0 {
		citation.Version = 1
	}
	now := time.Now().UTC()
	if citation.CreatedAt.IsZero() {
		citation.CreatedAt = now
	}
	if citation.UpdatedAt.IsZero() {
		citation.UpdatedAt = now
	}

	query := `
		INSERT INTO citations (
			id, submission_id, raw_text, edited_text,
			doi, arxiv_id, handle, authors,
			title, venue, journal, volume, issue, pages, publication_year, url,
			processing_stage, is_processed, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21
		)`

	_, err = r.db.Exec(ctx, query,
		citation.ID, citation.SubmissionID, citation.RawText, citation.EditedText,
		citation.Identifiers.DOI, citation.Identifiers.ArXivID, citation.Identifiers.Handle, authorsJSON,
		citation.Title, citation.Venue, citation.Journal, citation.Volume,
		citation.Issue, citation.Pages, citation.PublicationYear, citation.URL,
		citation.ProcessingStage, citation.IsProcessed, citation.Version,
		citation.CreatedAt, citation.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("citation", citation.ID.String())
		}
		return fmt.Errorf("failed to create citation: %w", err)
	}

	return nil
}

// Get retrieves a citation by its ID.
func (r *PgCitationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Citation, error) {
	query := fmt.Sprintf(`SELECT %s FROM citations WHERE id = $1`, citationColumns)

	row := r.db.QueryRow(ctx, query, id)
	citation, err := scanCitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("citation", id.String())
		}
		return nil, fmt.Errorf("failed to get citation: %w", err)
	}

	return citation, nil
}

// CasEdit applies a field patch guarded by the expected row version.
//
// The UPDATE carries both the id and the expected version in its WHERE
// clause, so a concurrent writer that already bumped the version makes this
// statement affect zero rows. A follow-up existence check disambiguates
// a missing row from a version mismatch.
func (r *PgCitationRepository) CasEdit(ctx context.Context, id uuid.UUID, expectedVersion int64, patch CitationPatch) error {
	if expectedVersion <= 0 {
		return domain.NewValidationError("expected_version", "expected version must be positive")
	}
	if patch.IsEmpty() {
		return domain.NewValidationError("patch", "patch must set at least one field")
	}

	setClauses, args, err := buildPatchSet(patch)
	if err != nil {
		return err
	}

	argIndex := len(args) + 1
	setClauses = append(setClauses,
		"version = version + 1",
		fmt.Sprintf("updated_at = $%d", argIndex),
	)
	args = append(args, time.Now().UTC())
	argIndex++

	query := fmt.Sprintf(
		"UPDATE citations SET %s WHERE id = $%d AND version = $%d",
		strings.Join(setClauses, ", "), argIndex, argIndex+1,
	)
	args = append(args, id, expectedVersion)

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply citation patch: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM citations WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check citation existence: %w", err)
		}
		if !exists {
			return domain.NewNotFoundError("citation", id.String())
		}
		return domain.NewConflictError("citation", id.String(), expectedVersion)
	}

	return nil
}

// ListBySubmission retrieves citations belonging to a submission.
func (r *PgCitationRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID, filter CitationFilter) ([]*domain.Citation, int64, error) {
	if submissionID == uuid.Nil {
		return nil, 0, domain.NewValidationError("submission_id", "submission ID is required")
	}
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"submission_id = $1"}
	args := []interface{}{submissionID}
	argIndex := 2

	if filter.Processed != nil {
		conditions = append(conditions, fmt.Sprintf("is_processed = $%d", argIndex))
		args = append(args, *filter.Processed)
		argIndex++
	}

	if filter.Stage != nil {
		conditions = append(conditions, fmt.Sprintf("processing_stage = $%d", argIndex))
		args = append(args, *filter.Stage)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM citations WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count citations: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM citations
		WHERE %s
		ORDER BY created_at ASC
		LIMIT $%d OFFSET $%d`,
		citationColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list citations: %w", err)
	}
	defer rows.Close()

	citations := make([]*domain.Citation, 0, filter.Limit)
	for rows.Next() {
		citation, err := scanCitationFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan citation: %w", err)
		}
		citations = append(citations, citation)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating citations: %w", err)
	}

	return citations, totalCount, nil
}

// Delete removes a citation by its ID.
func (r *PgCitationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, "DELETE FROM citations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete citation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("citation", id.String())
	}

	return nil
}

// buildPatchSet converts a CitationPatch into SET clauses and arguments.
// Clause ordering is fixed so generated SQL is deterministic.
func buildPatchSet(patch CitationPatch) ([]string, []interface{}, error) {
	var clauses []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.EditedText != nil {
		add("edited_text", *patch.EditedText)
	}
	if patch.DOI != nil {
		add("doi", *patch.DOI)
	}
	if patch.ArXivID != nil {
		add("arxiv_id", *patch.ArXivID)
	}
	if patch.Handle != nil {
		add("handle", *patch.Handle)
	}
	if patch.Authors != nil {
		authorsJSON, err := json.Marshal(*patch.Authors)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal authors: %w", err)
		}
		add("authors", authorsJSON)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Venue != nil {
		add("venue", *patch.Venue)
	}
	if patch.Journal != nil {
		add("journal", *patch.Journal)
	}
	if patch.Volume != nil {
		add("volume", *patch.Volume)
	}
	if patch.Issue != nil {
		add("issue", *patch.Issue)
	}
	if patch.Pages != nil {
		add("pages", *patch.Pages)
	}
	if patch.PublicationYear != nil {
		add("publication_year", *patch.PublicationYear)
	}
	if patch.URL != nil {
		add("url", *patch.URL)
	}
	if patch.ProcessingStage != nil {
		add("processing_stage", *patch.ProcessingStage)
	}
	if patch.IsProcessed != nil {
		add("is_processed", *patch.IsProcessed)
	}

	return clauses, args, nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// citationScanDest holds the destination pointers for scanning a citation row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type citationScanDest struct {
	citation    domain.Citation
	authorsJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *citationScanDest) destinations() []interface{} {
	return []interface{}{
		&d.citation.ID, &d.citation.SubmissionID, &d.citation.RawText, &d.citation.EditedText,
		&d.citation.Identifiers.DOI, &d.citation.Identifiers.ArXivID, &d.citation.Identifiers.Handle, &d.authorsJSON,
		&d.citation.Title, &d.citation.Venue, &d.citation.Journal, &d.citation.Volume,
		&d.citation.Issue, &d.citation.Pages, &d.citation.PublicationYear, &d.citation.URL,
		&d.citation.ProcessingStage, &d.citation.IsProcessed, &d.citation.Version,
		&d.citation.CreatedAt, &d.citation.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals the author list.
func (d *citationScanDest) finalize() (*domain.Citation, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.citation.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	return &d.citation, nil
}

// scanCitation scans a single row into a Citation.
func scanCitation(row pgx.Row) (*domain.Citation, error) {
	var dest citationScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanCitationFromRows scans the current row from pgx.Rows into a Citation.
func scanCitationFromRows(rows pgx.Rows) (*domain.Citation, error) {
	var dest citationScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
