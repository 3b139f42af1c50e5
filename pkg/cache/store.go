package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// ErrEndOfCache signals an index access past an exhausted store.
var ErrEndOfCache = errors.New("end of cached sequence")

// Record is one structured item fetched from the source. Default order is
// fetch order.
type Record map[string]any

// Source supplies the next batch of records when the store extends itself.
// An empty batch with a nil error means the source is exhausted.
type Source interface {
	NextBatch() ([]Record, error)
}

// Store is a disk-backed ordered record table with a sequential read cursor
// and a sticky exhausted flag. It never shrinks except on Clear. Exactly one
// iterator drives a store at a time; distinct fingerprints are independent.
type Store struct {
	path   string
	kind   string
	source Source
	logger zerolog.Logger

	records   []Record
	cursor    int
	exhausted bool
}

// Open loads or creates the store for a fingerprint. The file path is
// derived once: <root>/<kind>/<hash>.json. clearOnInit wipes any existing
// file, forcing a full refetch. A file that fails to deserialize is treated
// as absent: cleared and rebuilt, never fatal.
func Open(root, kind string, fp Fingerprint, source Source, clearOnInit bool, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   filepath.Join(root, kind, fp.Hash()+".json"),
		kind:   kind,
		source: source,
		logger: logger,
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	if clearOnInit {
		s.logger.Info().Str("path", s.path).Msg("Clearing cache on init")
		if err := s.Clear(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		Corruptions.Inc()
		s.logger.Warn().
			Err(err).
			Str("path", s.path).
			Msg("Cache file corrupt, rebuilding")
		return s.Clear()
	}

	s.records = records
	Records.WithLabelValues(s.kind).Set(float64(len(s.records)))
	s.logger.Debug().
		Str("path", s.path).
		Int("records", len(s.records)).
		Msg("Cache loaded")
	return nil
}

func (s *Store) persist() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("marshal cache records: %w", err)
	}
	if s.records == nil {
		data = []byte("[]")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	PersistedBytes.Add(float64(len(data)))
	Records.WithLabelValues(s.kind).Set(float64(len(s.records)))
	return nil
}

// Extend asks the source for the next batch. An empty batch marks the store
// exhausted and reports false; otherwise the batch is appended, persisted
// and true is returned. Exhaustion is sticky until Clear.
func (s *Store) Extend() (bool, error) {
	if s.exhausted {
		return false, nil
	}

	batch, err := s.source.NextBatch()
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		s.exhausted = true
		Extensions.WithLabelValues(s.kind, "exhausted").Inc()
		s.logger.Debug().Str("path", s.path).Msg("Source exhausted")
		return false, nil
	}

	s.records = append(s.records, batch...)
	if err := s.persist(); err != nil {
		return false, err
	}

	Extensions.WithLabelValues(s.kind, "appended").Inc()
	s.logger.Debug().
		Str("path", s.path).
		Int("appended", len(batch)).
		Int("records", len(s.records)).
		Msg("Cache extended")
	return true, nil
}

// Drain extends until the source is exhausted. Calling it again afterwards
// is a no-op.
func (s *Store) Drain() error {
	for {
		ok, err := s.Extend()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Get returns the record at index i, transparently extending from the
// source while i is out of bounds and the source is not exhausted. Once
// exhausted, out-of-bounds access fails with ErrEndOfCache.
func (s *Store) Get(i int) (Record, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: negative index %d", ErrEndOfCache, i)
	}
	for i >= len(s.records) {
		ok, err := s.Extend()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrEndOfCache
		}
	}
	return s.records[i], nil
}

// Next returns the record at the read cursor and advances it.
func (s *Store) Next() (Record, error) {
	rec, err := s.Get(s.cursor)
	if err != nil {
		return nil, err
	}
	s.cursor++
	return rec, nil
}

// Reset rewinds the read cursor.
func (s *Store) Reset() {
	s.cursor = 0
}

// Len drains the store and returns the full record count.
func (s *Store) Len() (int, error) {
	if err := s.Drain(); err != nil {
		return 0, err
	}
	return len(s.records), nil
}

// CachedLen returns the record count without touching the source.
func (s *Store) CachedLen() int {
	return len(s.records)
}

// CachedAt returns the record at index i without extending. It fails with
// ErrEndOfCache past the cached range.
func (s *Store) CachedAt(i int) (Record, error) {
	if i < 0 || i >= len(s.records) {
		return nil, ErrEndOfCache
	}
	return s.records[i], nil
}

// Tail returns the last cached record without extending.
func (s *Store) Tail() (Record, bool) {
	if len(s.records) == 0 {
		return nil, false
	}
	return s.records[len(s.records)-1], true
}

// Exhausted reports whether the source has no further items.
func (s *Store) Exhausted() bool {
	return s.exhausted
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// SortBy drains the store, sorts it in place and persists.
func (s *Store) SortBy(less func(a, b Record) bool) error {
	if err := s.Drain(); err != nil {
		return err
	}
	return s.SortCached(less)
}

// SortCached sorts only the records already cached and persists, without
// consulting the source.
func (s *Store) SortCached(less func(a, b Record) bool) error {
	if len(s.records) == 0 {
		return nil
	}
	sort.SliceStable(s.records, func(i, j int) bool {
		return less(s.records[i], s.records[j])
	})
	return s.persist()
}

// Clear wipes the store and its file, resetting cursor and exhaustion.
func (s *Store) Clear() error {
	s.records = nil
	s.cursor = 0
	s.exhausted = false
	return s.persist()
}
