package iterator

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxSearchTags is the board's hard limit on tags per posts query.
const MaxSearchTags = 40

// ErrTooManyTags is returned before any network call when a posts query
// exceeds the tag budget.
var ErrTooManyTags = errors.New("too many search tags")

// reservedMetatags control pagination and ordering; caller-supplied copies
// are stripped so they cannot fight the cursor protocol.
var reservedMetatags = map[string]bool{
	"order": true,
	"limit": true,
	"page":  true,
	"tags":  true,
}

// PostsConfig describes a posts query.
type PostsConfig struct {
	API API

	// Endpoint is the board's posts endpoint URL.
	Endpoint string

	// Tags is the combined search tag set.
	Tags []string

	// Filters is the filter chain applied to every fetched post.
	Filters []Filter

	// Limit is the page size requested from the board.
	Limit int

	// ClearOnInit wipes any existing cache file, forcing a full refetch.
	ClearOnInit bool
}

// NewPosts creates the posts iterator: an ID-cursor iterator that always
// delivers posts oldest-to-newest regardless of upstream ordering. The tag
// budget is validated before any network call.
func NewPosts(cfg PostsConfig) (*IDIterator, error) {
	tags := normalizeTags(cfg.Tags)
	if len(tags) > MaxSearchTags {
		return nil, fmt.Errorf("%w: %d tags (maximum %d)", ErrTooManyTags, len(tags), MaxSearchTags)
	}

	// Canonical ordering token: the board serves ascending ids, which the
	// ID cursor depends on.
	tags = append(tags, "order:id")
	sort.Strings(tags)

	params := url.Values{}
	params.Set("tags", strings.Join(tags, " "))
	if cfg.Limit > 0 {
		params.Set("limit", strconv.Itoa(cfg.Limit))
	}

	return NewID(IDConfig{
		Config: Config{
			API:         cfg.API,
			Endpoint:    cfg.Endpoint,
			Kind:        "posts",
			Params:      params,
			Filters:     cfg.Filters,
			ClearOnInit: cfg.ClearOnInit,
		},
		ReverseResponses: true,
		IDPath:           Field("id"),
	})
}

// normalizeTags deduplicates and strips reserved pagination metatags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		if name, _, ok := strings.Cut(tag, ":"); ok && reservedMetatags[name] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
