// Package zotero provides a client for the Zotero Web API (v3) and for the
// local API served by the Zotero desktop application.
//
// A Client is driven by one logical caller at a time: pagination links,
// stored default parameters and the template cache live on the client and
// are reset or refreshed by each call.
package zotero

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

const (
	// WebEndpoint is the hosted Zotero API base URL.
	WebEndpoint = "https://api.zotero.org"

	// LocalEndpoint is the API served by a running Zotero desktop app.
	LocalEndpoint = "http://localhost:23119/api"

	// APIVersion is the Zotero-API-Version sent with every request.
	APIVersion = "3"

	// DefaultTimeout is the ceiling applied to every HTTP call.
	DefaultTimeout = 30 * time.Second

	// DefaultLimit is the page size substituted when a call sets no limit.
	DefaultLimit = 100

	// MaxBatchItems is the most records a single write call accepts.
	MaxBatchItems = 50

	// templateFreshness is how long a cached template or schema is trusted
	// without a conditional re-check against the server.
	templateFreshness = time.Hour
)

// Version identifies the library in the User-Agent header.
const Version = "1.0.0"

// NoLimit requests that the limit parameter be omitted entirely, for calls
// that must see all results (e.g. version listings).
const NoLimit = -1

// LibraryType selects the root of the resource tree.
type LibraryType string

// Library types accepted by New.
const (
	UserLibrary  LibraryType = "user"
	GroupLibrary LibraryType = "group"
)

// Client is a Zotero API client for a single user or group library.
//
// A Client is safe against concurrent misuse (internal state is locked) but
// is designed for one logical caller: stored default parameters are consumed
// by the next read call, and pagination state belongs to the most recent
// multi-object response.
type Client struct {
	libraryID   string
	libraryType string // "users" or "groups" path segment
	apiKey      string
	locale      string
	endpoint    string
	local       bool
	localPrefix int

	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     hclog.Logger

	// clock hooks, replaced in tests
	now   func() time.Time
	sleep func(time.Duration)

	mu           sync.Mutex
	urlParams    Params            // stored defaults, consumed by the next read
	links        map[string]string // pagination links from the last multi-object response
	lastResponse *response
	templates    map[string]*templateEntry
	backoffUntil time.Time
	snapshot     bool // last file call returned a zipped snapshot
	search       *SavedSearch
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key. Not required for public libraries or for
// the local API.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLocale sets the locale attached to requests. Defaults to "en-US".
func WithLocale(locale string) Option {
	return func(c *Client) { c.locale = locale }
}

// WithEndpoint sets a custom API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithLocal targets the API served by a running Zotero desktop app. Link
// paths returned by that server carry an /api prefix that is stripped when
// following pagination links.
func WithLocal() Option {
	return func(c *Client) {
		c.local = true
		c.endpoint = LocalEndpoint
	}
}

// WithLocalPrefix sets the number of leading path segments stripped from
// pagination links in local mode. Defaults to 1 (the /api prefix).
func WithLocalPrefix(segments int) Option {
	return func(c *Client) { c.localPrefix = segments }
}

// WithHTTPClient sets a custom HTTP client. The file:// transport is still
// used as a fallback for unsupported URL schemes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout ceiling of the client New builds.
// A client supplied via WithHTTPClient keeps its own Timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLimiter sets a client-side request pacer applied before every call,
// in addition to the server-driven backoff.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets a logger. Defaults to a no-op logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the given library. libraryType must be
// UserLibrary or GroupLibrary. If no API key option is given, the
// ZOTERO_API_KEY environment variable is consulted.
func New(libraryID string, libraryType LibraryType, opts ...Option) (*Client, error) {
	if libraryID == "" || (libraryType != UserLibrary && libraryType != GroupLibrary) {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		libraryID:   libraryID,
		libraryType: string(libraryType) + "s",
		locale:      "en-US",
		endpoint:    WebEndpoint,
		localPrefix: 1,
		timeout:     DefaultTimeout,
		logger:      hclog.NewNullLogger(),
		now:         time.Now,
		sleep:       time.Sleep,
		templates:   make(map[string]*templateEntry),
	}
	if key := os.Getenv("ZOTERO_API_KEY"); key != "" {
		c.apiKey = key
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: newTransport(http.DefaultTransport),
			Timeout:   c.timeout,
		}
	}
	return c, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// defaultHeaders returns headers attached to every API request.
func (c *Client) defaultHeaders() map[string]string {
	h := map[string]string{
		"User-Agent":         "zotero-go/" + Version,
		"Zotero-API-Version": APIVersion,
	}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

// LastModifiedVersionHeader returns the last-modified-version header of the
// most recent response, or 0 when absent.
func (c *Client) lastModifiedVersionHeader() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResponse == nil {
		return 0
	}
	return headerInt(c.lastResponse.header, "Last-Modified-Version")
}
