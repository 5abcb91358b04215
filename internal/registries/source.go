// Package registries provides interfaces and types for the scholarly registry
// clients the enrichment pipeline resolves against.
//
// Two kinds of registries exist: bibliographic registries keyed by DOI
// (Crossref, OpenAlex) and identity registries keyed by ORCID iD. Clients
// return the record alongside the raw HTTP status code of the lookup; the
// stage layer owns the mapping from status code to merge / skip / retry, so
// clients must not collapse status codes into errors of their own.
//
// Example usage:
//
//	client := crossref.New(cfg)
//	record, status, err := client.ResolveByDOI(ctx, "10.1234/example")
package registries

import "context"

// WorkRecord holds the bibliographic metadata a registry returned for a DOI.
// Empty fields mean the registry did not report a value; the merge step only
// fills fields the citation does not already have, so partial records are
// normal and expected.
type WorkRecord struct {
	// DOI is the identifier the record was resolved by, normalized to the
	// bare lowercase form without a resolver prefix.
	DOI string

	// Title is the work's primary title.
	Title string

	// Venue is the publication venue (conference or series name).
	Venue string

	// Journal is the container journal name. Registries that do not
	// distinguish venue from journal report the same value for both.
	Journal string

	// Volume, Issue and Pages locate the work within the journal.
	Volume string
	Issue  string
	Pages  string

	// PublicationYear is the year of publication, 0 when unknown.
	PublicationYear int

	// URL is the landing page or resolver URL for the work.
	URL string
}

// PersonRecord holds the identity metadata a registry returned for an
// identity reference.
type PersonRecord struct {
	// ORCID is the identifier the record was resolved by, in the bare
	// 0000-0000-0000-0000 form.
	ORCID string

	// Name is the person's display name (credit name when the registry
	// provides one, otherwise given plus family name).
	Name string

	// Affiliation is the person's most recent employment affiliation,
	// empty when the registry lists none.
	Affiliation string
}

// BibliographicSource resolves a DOI to bibliographic metadata.
// Implementations must return the raw HTTP status code of the lookup even on
// success; a zero status with a non-nil error means the request never
// produced a response (network failure or timeout).
type BibliographicSource interface {
	// ResolveByDOI fetches the work record for the given bare DOI.
	// The record is nil whenever the status is not 2xx.
	ResolveByDOI(ctx context.Context, doi string) (*WorkRecord, int, error)

	// Name returns a human-readable name for this registry.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this registry is currently enabled
	// and available for lookups.
	IsEnabled() bool
}

// IdentitySource resolves an identity reference to person metadata.
type IdentitySource interface {
	// ResolveID fetches the person record for the given ORCID iD.
	// The record is nil whenever the status is not 2xx.
	ResolveID(ctx context.Context, orcid string) (*PersonRecord, int, error)

	// Name returns a human-readable name for this registry.
	Name() string

	// IsEnabled returns whether this registry is currently enabled
	// and available for lookups.
	IsEnabled() bool
}
