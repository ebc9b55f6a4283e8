package s2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Academic Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// RecommendationsURL serves the paper recommendation endpoint, which
	// lives outside the graph tree.
	RecommendationsURL = "https://api.semanticscholar.org/recommendations/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit is the unauthenticated request budget (requests/second).
	RateLimit = 1.0

	// DefaultPaperFields are the fields requested by default for paper lookups.
	DefaultPaperFields = "title,abstract,authors,year,venue,publicationDate,url,citationCount,referenceCount,isOpenAccess,fieldsOfStudy,externalIds"

	// Default limits for the paging endpoints.
	DefaultSearchLimit     = 50
	DefaultCitationsLimit  = 100
	DefaultReferencesLimit = 100
)

// Client is a rate-limited HTTP client for the Semantic Scholar API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	recsURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
		c.recsURL = u
	}
}

// WithLimiter replaces the default rate limiter.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a Semantic Scholar API client. The S2_API_KEY
// environment variable is consulted when no key option is given.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		recsURL:    RecommendationsURL,
	}
	if key := os.Getenv("S2_API_KEY"); key != "" {
		c.apiKey = key
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeDOI lowercases a DOI and strips resolver and scheme prefixes, so
// identifiers from different sources compare equal.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}

// get performs one rate-limited GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, rawURL string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if query != nil {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// checkHTTPErrors maps response status codes to the error taxonomy.
func checkHTTPErrors(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return &APIError{StatusCode: resp.StatusCode, Message: "not found"}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return nil
}

// Paper fetches a paper by identifier: an S2 paper ID, or a prefixed
// external ID such as "DOI:10.1234/x" or "ARXIV:2106.15928".
func (c *Client) Paper(ctx context.Context, id string) (*Paper, error) {
	query := url.Values{"fields": {DefaultPaperFields}}
	var paper Paper
	if err := c.get(ctx, c.baseURL+"/paper/"+url.PathEscape(id), query, &paper); err != nil {
		annotatePaperID(err, id)
		return nil, err
	}
	return &paper, nil
}

// PaperByDOI fetches a paper by DOI, normalizing the identifier first.
func (c *Client) PaperByDOI(ctx context.Context, doi string) (*Paper, error) {
	return c.Paper(ctx, "DOI:"+NormalizeDOI(doi))
}

// SearchPapers searches for papers by keyword relevance.
func (c *Client) SearchPapers(ctx context.Context, keyword string, limit int) (*SearchResponse, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query := url.Values{
		"query":  {keyword},
		"fields": {DefaultPaperFields},
		"limit":  {strconv.Itoa(limit)},
	}
	var out SearchResponse
	if err := c.get(ctx, c.baseURL+"/paper/search", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Citations lists papers that cite the given paper.
func (c *Client) Citations(ctx context.Context, id string, limit, offset int) (*CitationsResponse, error) {
	return c.edges(ctx, id, "citations", limit, DefaultCitationsLimit, offset)
}

// References lists papers the given paper cites.
func (c *Client) References(ctx context.Context, id string, limit, offset int) (*CitationsResponse, error) {
	return c.edges(ctx, id, "references", limit, DefaultReferencesLimit, offset)
}

func (c *Client) edges(ctx context.Context, id, kind string, limit, defaultLimit, offset int) (*CitationsResponse, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := url.Values{
		"fields": {DefaultPaperFields},
		"limit":  {strconv.Itoa(limit)},
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var out CitationsResponse
	if err := c.get(ctx, c.baseURL+"/paper/"+url.PathEscape(id)+"/"+kind, query, &out); err != nil {
		annotatePaperID(err, id)
		return nil, err
	}
	return &out, nil
}

// Recommendations fetches papers similar to the given paper.
func (c *Client) Recommendations(ctx context.Context, id string, limit int) ([]Paper, error) {
	query := url.Values{"fields": {DefaultPaperFields}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out RecommendationsResponse
	if err := c.get(ctx, c.recsURL+"/papers/forpaper/"+url.PathEscape(id), query, &out); err != nil {
		annotatePaperID(err, id)
		return nil, err
	}
	return out.RecommendedPapers, nil
}

func annotatePaperID(err error, id string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.PaperID = id
	}
}
