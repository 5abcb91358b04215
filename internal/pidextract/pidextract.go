// Package pidextract parses persistent identifiers out of free-form citation
// text. Matching is deterministic: the same input always yields the same
// identifiers, which keeps the extraction stage idempotent.
package pidextract

import (
	"regexp"
	"strings"
)

// Identifier kinds reported by Extract.
const (
	KindDOI    = "doi"
	KindArXiv  = "arxiv"
	KindHandle = "handle"
)

var (
	// DOI: the modern Crossref-recommended pattern. Accepts an optional
	// "doi:" or resolver-URL prefix. Trailing punctuation that citation
	// styles append (period, comma, closing paren) is trimmed afterwards.
	doiPattern = regexp.MustCompile(`(?i)\b(?:doi:\s*|https?://(?:dx\.)?doi\.org/)?(10\.\d{1,9}/[^\s"<>]+)`)

	// arXiv: both the post-2007 form (2001.00001 with optional version) and
	// the old archive.class/YYMMNNN form.
	arxivPattern = regexp.MustCompile(`(?i)\barxiv:\s*((?:\d{4}\.\d{4,5})(?:v\d+)?|(?:[a-z-]+(?:\.[A-Z]{2})?/\d{7}))`)

	// Handle: hdl resolver URL or an explicit "hdl:" prefix. Bare
	// prefix/suffix pairs are indistinguishable from DOIs and other slashed
	// tokens, so only prefixed forms are recognized.
	handlePattern = regexp.MustCompile(`(?i)\b(?:hdl:\s*|https?://hdl\.handle\.net/)(\d+(?:\.\d+)*/[^\s"<>]+)`)

	trailingPunct = ".,;:)]}>'\""
)

// Result holds the identifiers parsed from one citation text.
// Unmatched kinds are left as empty strings.
type Result struct {
	DOI     string
	ArXivID string
	Handle  string
}

// Empty reports whether no identifier was matched.
func (r Result) Empty() bool {
	return r.DOI == "" && r.ArXivID == "" && r.Handle == ""
}

// Extract runs all identifier matchers against the given text and returns the
// first match of each kind. Text is matched as-is; callers pass the edited
// text when present, falling back to the raw text.
func Extract(text string) Result {
	return Result{
		DOI:     ExtractDOI(text),
		ArXivID: ExtractArXivID(text),
		Handle:  ExtractHandle(text),
	}
}

// ExtractDOI returns the first DOI found in text, or "".
func ExtractDOI(text string) string {
	m := doiPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], trailingPunct)
}

// ExtractArXivID returns the first arXiv identifier found in text, or "".
// The "arXiv:" prefix is required; bare numeric forms collide with too many
// other tokens (page ranges, report numbers) to match safely.
func ExtractArXivID(text string) string {
	m := arxivPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], trailingPunct)
}

// ExtractHandle returns the first Handle found in text, or "".
func ExtractHandle(text string) string {
	m := handlePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], trailingPunct)
}
