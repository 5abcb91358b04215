// Package orcid implements the identity registry client for the ORCID
// public API.
package orcid

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
	// DefaultBaseURL is the default ORCID public API base URL.
	DefaultBaseURL = "https://pub.orcid.org/v3.0"

	// DefaultRateLimit is the default rate limit for requests per second.
	// The public API allows up to 12 req/sec; stay under it.
	DefaultRateLimit = 8.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 8

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// orcidURLPrefix is the resolver prefix sometimes present on stored iDs.
	orcidURLPrefix = "https://orcid.org/"
)

// Config holds configuration for the ORCID client.
type Config struct {
	// BaseURL is the ORCID public API base URL including the API version.
	// Defaults to https://pub.orcid.org/v3.0
	BaseURL string

	// APIToken is an optional public API bearer token. The public API works
	// without one but tokens get a dedicated rate pool.
	APIToken string

	// MailTo is the contact email included in the User-Agent.
	MailTo string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 8 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 8.
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

// Client implements the registries.IdentitySource interface for ORCID.
type Client struct {
	config     Config
	httpClient *registries.HTTPClient
}

// Ensure Client implements IdentitySource interface.
var _ registries.IdentitySource = (*Client)(nil)

// New creates a new ORCID client with the given configuration.
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

// NewWithHTTPClient creates a new ORCID client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *registries.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ResolveID fetches the ORCID person record for the given iD.
// The returned status is the raw HTTP status of the lookup; the record is
// non-nil only for 2xx responses.
func (c *Client) ResolveID(ctx context.Context, orcid string) (*registries.PersonRecord, int, error) {
	id := NormalizeID(orcid)

	lookupURL, err := c.buildRecordURL(id)
	if err != nil {
		return nil, 0, fmt.Errorf("building record URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	// The ORCID API content-negotiates; without this it returns XML.
	req.Header.Set("Accept", "application/json")

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
	var rec record
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&rec); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}

	return c.recordToPerson(id, &rec), resp.StatusCode, nil
}

// Name returns the human-readable name for this registry.
func (c *Client) Name() string {
	return "ORCID"
}

// IsEnabled returns whether this registry is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildRecordURL constructs the /{id}/record URL.
func (c *Client) buildRecordURL(id string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + "/" + id + "/record"
	return baseURL.String(), nil
}

// recordToPerson converts an ORCID record to a registry person record.
func (c *Client) recordToPerson(id string, rec *record) *registries.PersonRecord {
	person := &registries.PersonRecord{
		ORCID: id,
	}

	if rec.Person.Name != nil {
		name := rec.Person.Name
		if name.CreditName != nil && name.CreditName.Value != "" {
			person.Name = name.CreditName.Value
		} else {
			var parts []string
			if name.GivenNames != nil && name.GivenNames.Value != "" {
				parts = append(parts, name.GivenNames.Value)
			}
			if name.FamilyName != nil && name.FamilyName.Value != "" {
				parts = append(parts, name.FamilyName.Value)
			}
			person.Name = strings.Join(parts, " ")
		}
	}

	// Employment groups come back most recent first; take the first
	// organization with a name.
	for _, group := range rec.Activities.Employments.AffiliationGroups {
		for _, summary := range group.Summaries {
			if summary.EmploymentSummary != nil && summary.EmploymentSummary.Organization.Name != "" {
				person.Affiliation = summary.EmploymentSummary.Organization.Name
				return person
			}
		}
	}

	return person
}

// NormalizeID strips the resolver URL prefix from an ORCID iD and uppercases
// the checksum character.
func NormalizeID(orcid string) string {
	id := strings.TrimSpace(orcid)
	id = strings.TrimPrefix(id, orcidURLPrefix)
	id = strings.TrimPrefix(id, "http://orcid.org/")
	return strings.ToUpper(strings.TrimSpace(id))
}
