// Package domain provides domain models and business logic for the Citation
// Enrichment Service.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProcessingStage is the monotonic ordinal recording how far a citation has
// progressed through the enrichment pipeline. It only moves forward, except
// when an explicit reprocess request resets it to StageNone.
type ProcessingStage int

const (
	// StageNone means no enrichment stage has completed yet.
	StageNone ProcessingStage = 0

	// StageIdentifiersExtracted means persistent identifiers have been parsed
	// from the citation text.
	StageIdentifiersExtracted ProcessingStage = 1

	// StageIdentitiesResolved means author identity resolution has completed
	// (including the case where no author carried an identity reference).
	StageIdentitiesResolved ProcessingStage = 2
)

// String returns a human-readable name for the stage.
func (s ProcessingStage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageIdentifiersExtracted:
		return "identifiers_extracted"
	case StageIdentitiesResolved:
		return "identities_resolved"
	default:
		return "unknown"
	}
}

// EnrichmentReason describes why an enrichment run was triggered.
type EnrichmentReason string

const (
	// ReasonInitial is the first enrichment pass after the citation was created.
	ReasonInitial EnrichmentReason = "initial"

	// ReasonReprocess is an explicit editor request to redo enrichment. It
	// resets IsProcessed and ProcessingStage before dispatching stages.
	ReasonReprocess EnrichmentReason = "reprocess"
)

// Valid reports whether the reason is one of the known trigger reasons.
func (r EnrichmentReason) Valid() bool {
	return r == ReasonInitial || r == ReasonReprocess
}

// Identifiers holds the persistent identifiers extracted from citation text.
// Empty string means the identifier was not found. Once set, an identifier is
// never cleared except by an explicit reprocess reset.
type Identifiers struct {
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
	Handle  string `json:"handle,omitempty"`
}

// Empty reports whether no identifier was extracted.
func (i Identifiers) Empty() bool {
	return i.DOI == "" && i.ArXivID == "" && i.Handle == ""
}

// CitationAuthor represents one author of a cited work. ORCID is the author's
// identity-registry reference; the identity resolution stage patches Name and
// Affiliation in place and clears ORCID when the registry reports it unknown.
type CitationAuthor struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a CitationAuthor) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// Citation is the unit of enrichment work: one reference from a submission's
// reference list plus the metadata accumulated by the pipeline stages.
//
// Version is incremented by exactly one on every successful write and guards
// all stage writes via the store's compare-and-swap contract. Stages own
// disjoint field sets, which is what lets concurrently completing stages
// interleave safely: identifier extraction owns Identifiers, the bibliographic
// stages own Title/Venue/Journal/Volume/Issue/Pages/PublicationYear/URL, the
// identity stage owns the Authors elements, and the coordinator owns
// ProcessingStage and IsProcessed.
type Citation struct {
	ID           uuid.UUID
	SubmissionID uuid.UUID

	// RawText is the citation string as submitted; EditedText is the editor's
	// corrected form. Both are mutated only by editors, outside the pipeline.
	RawText    string
	EditedText string

	Identifiers Identifiers

	// Authors is ordered and its length is stable across enrichment: stages
	// patch individual element fields, never the shape of the list.
	Authors []CitationAuthor

	Title           string
	Venue           string
	Journal         string
	Volume          string
	Issue           string
	Pages           string
	PublicationYear int
	URL             string

	ProcessingStage ProcessingStage
	IsProcessed     bool

	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Text returns the text the identifier matchers should run against: the
// edited form when present, otherwise the raw submission text.
func (c *Citation) Text() string {
	if strings.TrimSpace(c.EditedText) != "" {
		return c.EditedText
	}
	return c.RawText
}

// HasDOI reports whether a DOI has been extracted for this citation.
func (c *Citation) HasDOI() bool {
	return c.Identifiers.DOI != ""
}

// EligibleForExtraction reports whether the identifier extraction stage may run.
func (c *Citation) EligibleForExtraction() bool {
	return !c.IsProcessed && c.ProcessingStage == StageNone
}

// EligibleForBibliographic reports whether a DOI-keyed bibliographic
// resolution stage may run.
func (c *Citation) EligibleForBibliographic() bool {
	return !c.IsProcessed && c.HasDOI()
}

// EligibleForIdentityResolution reports whether the author identity stage may
// run. It does not depend on the bibliographic stages: it only needs the
// identity references already present on Authors.
func (c *Citation) EligibleForIdentityResolution() bool {
	return !c.IsProcessed
}

// EligibleForCompletion reports whether the completion marker may run.
func (c *Citation) EligibleForCompletion() bool {
	return !c.IsProcessed
}

// CloneAuthors returns a copy of the authors slice safe to patch locally
// before committing the whole array in one write.
func (c *Citation) CloneAuthors() []CitationAuthor {
	if c.Authors == nil {
		return nil
	}
	out := make([]CitationAuthor, len(c.Authors))
	copy(out, c.Authors)
	return out
}
