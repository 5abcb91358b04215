// Package crossref implements the bibliographic registry client for the
// Crossref REST API.
package crossref

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
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// Crossref's polite pool (with mailto) tolerates this comfortably.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	// Defaults to https://api.crossref.org
	BaseURL string

	// MailTo is the contact email for the polite pool.
	// Providing an email grants access to the polite pool's better service.
	// See: https://api.crossref.org/swagger-ui/index.html
	MailTo string

	// APIToken is an optional Crossref Metadata Plus bearer token.
	APIToken string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 5 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 5.
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

// Client implements the registries.BibliographicSource interface for Crossref.
type Client struct {
	config     Config
	httpClient *registries.HTTPClient
}

// Ensure Client implements BibliographicSource interface.
var _ registries.BibliographicSource = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := registries.NewHTTPClient(registries.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "Helixir-CitationEnrichment/1.0 (mailto:" + cfg.MailTo + ")",
		APIToken:  cfg.APIToken,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *registries.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ResolveByDOI fetches the Crossref work record for the given DOI.
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
		// Drain so the connection can be reused; the caller only needs the code.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil, resp.StatusCode, nil
	}

	// Parse the response (limit body to 10MB to prevent resource exhaustion).
	var worksResp worksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&worksResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}

	return c.workToRecord(doi, &worksResp.Message), resp.StatusCode, nil
}

// Name returns the human-readable name for this registry.
func (c *Client) Name() string {
	return "Crossref"
}

// IsEnabled returns whether this registry is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildWorksURL constructs the /works/{doi} URL.
func (c *Client) buildWorksURL(doi string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	// Crossref expects the DOI percent-encoded in the path, so the slash in
	// the suffix must not read as a path separator. RawPath carries the
	// encoded form through URL serialization.
	baseURL.Path = "/works/" + doi
	baseURL.RawPath = "/works/" + url.PathEscape(doi)

	if c.config.MailTo != "" {
		query := url.Values{}
		query.Set("mailto", c.config.MailTo)
		baseURL.RawQuery = query.Encode()
	}

	return baseURL.String(), nil
}

// workToRecord converts a Crossref Work to a registry work record.
func (c *Client) workToRecord(doi string, work *Work) *registries.WorkRecord {
	record := &registries.WorkRecord{
		DOI:             strings.ToLower(strings.TrimSpace(doi)),
		Volume:          work.Volume,
		Issue:           work.Issue,
		Pages:           work.Page,
		PublicationYear: work.Issued.Year(),
		URL:             work.URL,
	}

	if work.DOI != "" {
		record.DOI = strings.ToLower(work.DOI)
	}
	if len(work.Title) > 0 {
		record.Title = work.Title[0]
	}
	if len(work.ContainerTitle) > 0 {
		record.Journal = work.ContainerTitle[0]
		record.Venue = work.ContainerTitle[0]
	}

	return record
}
