package iterator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nforsman/booru-client/pkg/cache"
	"github.com/nforsman/booru-client/pkg/logging"
)

// API is the slice of the board client an iterator needs: fetch one page
// and identify the requester for cache fingerprinting.
type API interface {
	// Fetch performs a paced GET and returns the response body. Transport
	// failures and error statuses surface as errors here.
	Fetch(endpoint string, params url.Values) ([]byte, error)

	// Requester is the API username, part of the cache identity.
	Requester() string

	// CacheRoot is the directory cache stores live under.
	CacheRoot() string
}

// Config describes one iterator-backed query.
type Config struct {
	API      API
	Endpoint string

	// Kind names the iterator type; it is the cache subdirectory.
	Kind string

	// Params are the request parameters sent with every page fetch.
	Params url.Values

	// Filters is the filter chain applied to every fetched item.
	Filters []Filter

	// ClearOnInit wipes any existing cache file, forcing a full refetch.
	ClearOnInit bool
}

// base carries the state shared by both cursor protocols and exposes the
// indexed/sequential access surface over the store.
type base struct {
	api      API
	endpoint string
	kind     string
	params   url.Values
	filters  []Filter
	fp       cache.Fingerprint
	store    *cache.Store
	logger   zerolog.Logger
}

func newBase(cfg Config) base {
	if cfg.Params == nil {
		cfg.Params = url.Values{}
	}
	fp := cache.Fingerprint{
		Requester: cfg.API.Requester(),
		Endpoint:  cfg.Endpoint,
		Params:    cfg.Params,
		Filters:   Descriptors(cfg.Filters),
	}
	logger := logging.NewLogger("iterator").With().
		Str("kind", cfg.Kind).
		Str("fingerprint", fp.Hash()).
		Logger()

	return base{
		api:      cfg.API,
		endpoint: cfg.Endpoint,
		kind:     cfg.Kind,
		params:   cfg.Params,
		filters:  cfg.Filters,
		fp:       fp,
		logger:   logger,
	}
}

func (b *base) open(source cache.Source, clearOnInit bool) error {
	store, err := cache.Open(b.api.CacheRoot(), b.kind, b.fp, source, clearOnInit, b.logger)
	if err != nil {
		return err
	}
	b.store = store
	b.logger.Info().Str("endpoint", b.endpoint).Msg("Iterator created")
	return nil
}

// Fingerprint returns the iterator's cache identity.
func (b *base) Fingerprint() cache.Fingerprint { return b.fp }

// Store exposes the backing record store.
func (b *base) Store() *cache.Store { return b.store }

// Get returns the record at index i, extending from the network on demand.
func (b *base) Get(i int) (cache.Record, error) { return b.store.Get(i) }

// Next returns the next record in sequence; cache.ErrEndOfCache past the
// final record.
func (b *base) Next() (cache.Record, error) { return b.store.Next() }

// Reset rewinds sequential reads.
func (b *base) Reset() { b.store.Reset() }

// Len materializes the full result set and returns its size.
func (b *base) Len() (int, error) { return b.store.Len() }

// SortBy materializes the full result set and sorts it by the number at
// path.
func (b *base) SortBy(path FieldPath, ascending bool) error {
	return b.store.SortBy(func(x, y cache.Record) bool {
		if ascending {
			return path.Number(x, 0) < path.Number(y, 0)
		}
		return path.Number(x, 0) > path.Number(y, 0)
	})
}

func (b *base) fetchItems(params url.Values) ([]cache.Record, error) {
	body, err := b.api.Fetch(b.endpoint, params)
	if err != nil {
		return nil, err
	}
	return firstArray(body)
}

func cloneValues(params url.Values) url.Values {
	out := make(url.Values, len(params)+1)
	for key, values := range params {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// firstArray decodes a board response: a JSON object whose first top-level
// key holds the page's item array.
func firstArray(body []byte) ([]cache.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode response: expected object, got %v", tok)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode response key: %w", err)
	}

	var items []cache.Record
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode response items: %w", err)
	}
	return items, nil
}

// PageIterator implements the page-number protocol: each extension fetches
// one page and applies the filter chain. A non-empty page reduced to zero
// items by filtering advances the page number and fetches again; only a
// genuinely empty upstream page exhausts the source.
type PageIterator struct {
	base
	nextPage int
}

// NewPage creates a page-number iterator starting at page 1.
func NewPage(cfg Config) (*PageIterator, error) {
	it := &PageIterator{base: newBase(cfg), nextPage: 1}
	if err := it.open(it, cfg.ClearOnInit); err != nil {
		return nil, err
	}
	return it, nil
}

// NextPage returns the page number the next extension will fetch.
func (it *PageIterator) NextPage() int { return it.nextPage }

// NextBatch fetches pages until one survives filtering or the upstream runs
// out. Implements cache.Source.
func (it *PageIterator) NextBatch() ([]cache.Record, error) {
	for {
		page := it.nextPage
		params := cloneValues(it.params)
		params.Set("page", strconv.Itoa(page))

		it.logger.Debug().Int("page", page).Msg("Requesting page")
		items, err := it.fetchItems(params)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			it.logger.Debug().Int("page", page).Msg("Upstream page empty")
			return nil, nil
		}

		it.nextPage = page + 1

		kept := applyFilters(items, it.filters)
		if len(kept) == 0 {
			it.logger.Debug().
				Int("page", page).
				Int("fetched", len(items)).
				Msg("Page empty after filtering, advancing")
			continue
		}
		return kept, nil
	}
}

// IDIterator implements the ID-cursor protocol: records are delivered in
// ascending id order and each extension requests items after the highest
// cached id using the board's "a<id>" cursor token.
type IDIterator struct {
	base

	// StartingID is the lower bound used while the cache is empty.
	startingID int64

	// reverse flips newest-first upstream pages to preserve ascending order.
	reverse bool

	idPath FieldPath
}

// IDConfig extends Config with ID-cursor specifics.
type IDConfig struct {
	Config

	// StartingID is the initial lower bound (default 0).
	StartingID int64

	// ReverseResponses is set when the upstream returns newest-first pages.
	ReverseResponses bool

	// IDPath locates the record id (default "id").
	IDPath FieldPath
}

// NewID creates an ID-cursor iterator.
func NewID(cfg IDConfig) (*IDIterator, error) {
	idPath := cfg.IDPath
	if len(idPath.steps) == 0 {
		idPath = Field("id")
	}
	it := &IDIterator{
		base:       newBase(cfg.Config),
		startingID: cfg.StartingID,
		reverse:    cfg.ReverseResponses,
		idPath:     idPath,
	}
	if err := it.open(it, cfg.ClearOnInit); err != nil {
		return nil, err
	}
	return it, nil
}

// nextMinimumID computes the cursor lower bound from the cached tail.
func (it *IDIterator) nextMinimumID() int64 {
	rec, ok := it.store.Tail()
	if !ok {
		return it.startingID
	}
	return int64(it.idPath.Number(rec, float64(it.startingID)))
}

// NextBatch fetches the next ascending id window, looping past pages fully
// removed by filtering using the last fetched id (not the last kept id) as
// the new lower bound. Implements cache.Source.
func (it *IDIterator) NextBatch() ([]cache.Record, error) {
	// Keep the cached tail ascending before deriving the cursor.
	if it.store.CachedLen() > 0 {
		err := it.store.SortCached(func(x, y cache.Record) bool {
			return it.idPath.Number(x, 0) < it.idPath.Number(y, 0)
		})
		if err != nil {
			return nil, err
		}
	}

	lower := it.nextMinimumID()
	for {
		params := cloneValues(it.params)
		params.Set("page", "a"+strconv.FormatInt(lower, 10))

		it.logger.Debug().Int64("cursor", lower).Msg("Requesting id window")
		items, err := it.fetchItems(params)
		if err != nil {
			return nil, err
		}
		if it.reverse {
			for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
				items[i], items[j] = items[j], items[i]
			}
		}
		if len(items) == 0 {
			it.logger.Debug().Int64("cursor", lower).Msg("Upstream id window empty")
			return nil, nil
		}

		lastID := int64(it.idPath.Number(items[len(items)-1], float64(lower)))

		kept := applyFilters(items, it.filters)
		if len(kept) == 0 {
			// Advance from the last fetched id; termination relies on the
			// upstream eventually returning a truly empty window.
			it.logger.Debug().
				Int64("cursor", lower).
				Int64("last_id", lastID).
				Int("fetched", len(items)).
				Msg("Window empty after filtering, advancing")
			lower = lastID
			continue
		}
		return kept, nil
	}
}
