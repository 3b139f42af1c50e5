// Package client provides the imageboard API client: authenticated, paced
// request submission plus the iterator constructors for the board's listing
// endpoints.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nforsman/booru-client/pkg/iterator"
	"github.com/nforsman/booru-client/pkg/logging"
	"github.com/nforsman/booru-client/pkg/media"
	"github.com/nforsman/booru-client/pkg/ratelimit"
	"github.com/nforsman/booru-client/pkg/scheduler"
)

// Board endpoint categories.
const (
	CategoryPosts      = "posts"
	CategoryFavorites  = "favorites"
	CategoryPostFlags  = "post_flags"
	CategoryNotes      = "notes"
	CategoryTags       = "tags"
	CategoryTagAliases = "tag_aliases"
)

const (
	// MaxRequestsPerMinute is the board's hard per-minute quota.
	MaxRequestsPerMinute = 120

	// DefaultPageSize is the board's maximum page size.
	DefaultPageSize = 320

	urlSuffix = ".json"
)

var validCategories = map[string]bool{
	CategoryPosts:      true,
	CategoryFavorites:  true,
	CategoryPostFlags:  true,
	CategoryNotes:      true,
	CategoryTags:       true,
	CategoryTagAliases: true,
}

// Config holds the client configuration.
type Config struct {
	// Username and APIKey authenticate every request via basic auth.
	Username string
	APIKey   string

	// BaseURL is the board root, with or without scheme.
	BaseURL string

	// UserAgent identifies this client to the board. Defaults to
	// "booru-client/1.0 (by <username>)".
	UserAgent string

	// RequestsPerMinute must not exceed the board quota.
	RequestsPerMinute int

	// BaseSearchTags are merged into every posts query by default.
	BaseSearchTags []string

	// CacheDir is the root for iterator cache stores.
	CacheDir string

	// MediaDir is the root for the media download cache.
	MediaDir string

	// PageSize is the page size requested from listing endpoints.
	PageSize int

	// RateLimit tunes dispatch pacing. The zero value derives a policy from
	// RequestsPerMinute.
	RateLimit ratelimit.Config

	// HTTPClient overrides the transport (mainly for tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration with safe board defaults.
func DefaultConfig(username, apiKey, baseURL string) Config {
	return Config{
		Username:          username,
		APIKey:            apiKey,
		BaseURL:           baseURL,
		RequestsPerMinute: 115,
		CacheDir:          "search_cache",
		MediaDir:          "search_cache/media",
		PageSize:          DefaultPageSize,
	}
}

var _ iterator.API = (*Client)(nil)

// Client is the board API client. All traffic flows through one paced
// scheduler; media downloads get their own, more aggressive one.
type Client struct {
	cfg     Config
	baseURL string
	headers map[string]string
	sched   *scheduler.Scheduler
	media   *media.Cache
	logger  zerolog.Logger
}

// New creates a board client.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" {
		return nil, &ConfigError{Field: "username", Reason: "is required"}
	}
	if cfg.APIKey == "" {
		return nil, &ConfigError{Field: "api_key", Reason: "is required"}
	}
	if cfg.BaseURL == "" {
		return nil, &ConfigError{Field: "base_url", Reason: "is required"}
	}
	if cfg.RequestsPerMinute <= 0 || cfg.RequestsPerMinute > MaxRequestsPerMinute {
		return nil, &ConfigError{
			Field:  "requests_per_minute",
			Reason: fmt.Sprintf("must be within 1..%d (got %d)", MaxRequestsPerMinute, cfg.RequestsPerMinute),
		}
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = fmt.Sprintf("booru-client/1.0 (by %s)", cfg.Username)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RateLimit == (ratelimit.Config{}) {
		// The configured quota caps the burst rate; sustained dispatching
		// runs at half of it.
		rl := ratelimit.DefaultConfig()
		rl.BurstRequestsPerMinute = cfg.RequestsPerMinute
		rl.BaseRequestsPerMinute = (cfg.RequestsPerMinute + 1) / 2
		cfg.RateLimit = rl
	}

	logger := logging.NewLogger("board-client")

	baseURL := cfg.BaseURL
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	sched := scheduler.New(scheduler.Config{
		MaxConcurrent:   4,
		NewJobThreshold: 1,
		Pacer:           ratelimit.NewPacer(cfg.RateLimit, logger),
		HTTPClient:      cfg.HTTPClient,
	}, logger)

	mediaCfg := media.DefaultConfig(cfg.MediaDir)
	if cfg.HTTPClient != nil {
		mediaCfg.Scheduler.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		headers: map[string]string{
			"User-Agent":    cfg.UserAgent,
			"Authorization": authHeader(cfg.Username, cfg.APIKey),
		},
		sched:  sched,
		media:  media.New(mediaCfg, logger),
		logger: logger,
	}, nil
}

func authHeader(username, apiKey string) string {
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + apiKey))
	return "Basic " + auth
}

// Endpoint builds a board endpoint URL: <base>/<category>[/<arg>...].json.
func (c *Client) Endpoint(category string, args ...string) (string, error) {
	if !validCategories[category] {
		return "", fmt.Errorf("invalid category %q", category)
	}
	pieces := append([]string{c.baseURL, category}, args...)
	return strings.Join(pieces, "/") + urlSuffix, nil
}

// Submit enqueues a paced, authenticated request and returns its job id.
// Never blocks.
func (c *Client) Submit(endpoint, method string, data url.Values) string {
	return c.sched.Submit(endpoint, method, c.headers, data)
}

// Await pops the result for a submitted job. Non-2xx responses come back as
// results, not errors; callers inspect the status themselves.
func (c *Client) Await(ctx context.Context, jobID string, timeout time.Duration) (*scheduler.Result, error) {
	return c.sched.Await(ctx, jobID, timeout)
}

// Request submits and waits in one step.
func (c *Client) Request(ctx context.Context, endpoint, method string, data url.Values, timeout time.Duration) (*scheduler.Result, error) {
	return c.Await(ctx, c.Submit(endpoint, method, data), timeout)
}

// Media returns the media download cache.
func (c *Client) Media() *media.Cache {
	return c.media
}

// Fetch implements iterator.API: a paced GET whose transport failures and
// error statuses surface as errors, since a failed page cannot extend a
// cache.
func (c *Client) Fetch(endpoint string, params url.Values) ([]byte, error) {
	res, err := c.Request(context.Background(), endpoint, http.MethodGet, params, 0)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.StatusCode >= 400 {
		body := string(res.Body)
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &StatusError{StatusCode: res.StatusCode, URL: res.URL, Body: body}
	}
	return res.Body, nil
}

// Requester implements iterator.API.
func (c *Client) Requester() string {
	return c.cfg.Username
}

// CacheRoot implements iterator.API.
func (c *Client) CacheRoot() string {
	return c.cfg.CacheDir
}
