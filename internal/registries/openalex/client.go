// Package openalex implements the bibliographic registry client for the
// OpenAlex API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/citation-enrichment-service/internal/registries"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// MailTo is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	MailTo string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 10 req/sec (polite pool with email gets higher).
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 10.
	BurstSize int

	// Enabled indicates whether this registry is enabled for lookups.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements the registries.BibliographicSource interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *registries.HTTPClient
}

// Ensure Client implements BibliographicSource interface.
var _ registries.BibliographicSource = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := registries.NewHTTPClient(registries.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "Helixir-CitationEnrichment/1.0 (mailto:" + cfg.MailTo + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *registries.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ResolveByDOI fetches the OpenAlex work record for the given DOI.
// The returned status is the raw HTTP status of the lookup; the record is
// non-nil only for 2xx responses.
func (c *Client) ResolveByDOI(ctx context.Context, doi string) (*registries.WorkRecord, int, error) {
	lookupURL, err := c.buildWorksURL(doi)
	if err != nil {
		return nil, 0, fmt.Errorf("building works URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil, resp.StatusCode, nil
	}

	// Parse the response (limit body to 10MB to prevent resource exhaustion).
	var work Work
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&work); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}

	return c.workToRecord(doi, &work), resp.StatusCode, nil
}

// Name returns the human-readable name for this registry.
func (c *Client) Name() string {
	return "OpenAlex"
}

// IsEnabled returns whether this registry is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildWorksURL constructs the URL for fetching a work by DOI.
// OpenAlex accepts the full resolver URL as the work identifier.
func (c *Client) buildWorksURL(doi string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	// Use direct path concatenation - OpenAlex expects the DOI as-is in the
	// path and handles URL decoding on their side.
	baseURL.Path = "/works/" + doiPrefix + strings.TrimSpace(doi)

	if c.config.MailTo != "" {
		query := url.Values{}
		query.Set("mailto", c.config.MailTo)
		baseURL.RawQuery = query.Encode()
	}

	return baseURL.String(), nil
}

// workToRecord converts an OpenAlex Work to a registry work record.
func (c *Client) workToRecord(doi string, work *Work) *registries.WorkRecord {
	record := &registries.WorkRecord{
		DOI:             normalizeDOI(doi),
		Volume:          work.Biblio.Volume,
		Issue:           work.Biblio.Issue,
		Pages:           formatPages(work.Biblio),
		PublicationYear: work.PublicationYear,
	}

	if work.DOI != "" {
		record.DOI = normalizeDOI(work.DOI)
	}

	// Prefer display_name as it is usually cleaner
	record.Title = work.DisplayName
	if record.Title == "" {
		record.Title = work.Title
	}

	if work.PrimaryLocation != nil {
		record.URL = work.PrimaryLocation.LandingPage
		if work.PrimaryLocation.Source != nil {
			record.Journal = work.PrimaryLocation.Source.DisplayName
			record.Venue = record.Journal
		}
	}

	return record
}

// formatPages joins the biblio page bounds into a "first-last" range.
func formatPages(b Biblio) string {
	switch {
	case b.FirstPage == "":
		return ""
	case b.LastPage == "" || b.LastPage == b.FirstPage:
		return b.FirstPage
	default:
		return b.FirstPage + "-" + b.LastPage
	}
}

// normalizeDOI strips resolver prefixes from DOIs and returns lowercase.
func normalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}
