package cache

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// fakeSource serves predefined batches, then reports exhaustion.
type fakeSource struct {
	batches [][]Record
	calls   int
	err     error
}

func (f *fakeSource) NextBatch() ([]Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

func rec(id int) Record {
	return Record{"id": float64(id)}
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func testFingerprint() Fingerprint {
	return Fingerprint{
		Requester: "alice",
		Endpoint:  "https://board.example/posts.json",
		Params:    url.Values{"tags": {"cloud"}},
	}
}

func openStore(t *testing.T, root string, source Source, clear bool) *Store {
	t.Helper()
	s, err := Open(root, "posts", testFingerprint(), source, clear, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestStore_PathLayout(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, &fakeSource{}, false)

	want := filepath.Join(root, "posts", testFingerprint().Hash()+".json")
	if s.Path() != want {
		t.Errorf("Path() = %q, want %q", s.Path(), want)
	}
}

func TestStore_ExtendAppendsAndPersists(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{batches: [][]Record{
		{rec(1), rec(2)},
		{rec(3)},
	}}
	s := openStore(t, root, source, false)

	ok, err := s.Extend()
	if err != nil || !ok {
		t.Fatalf("Extend() = %v, %v, want true, nil", ok, err)
	}
	if s.CachedLen() != 2 {
		t.Errorf("CachedLen() = %d, want 2", s.CachedLen())
	}

	// The extension must be on disk already.
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("cache file missing after Extend: %v", err)
	}

	reopened := openStore(t, root, &fakeSource{}, false)
	if reopened.CachedLen() != 2 {
		t.Errorf("reopened CachedLen() = %d, want 2", reopened.CachedLen())
	}
}

func TestStore_ExhaustionIsSticky(t *testing.T) {
	source := &fakeSource{batches: [][]Record{{rec(1)}}}
	s := openStore(t, t.TempDir(), source, false)

	if ok, _ := s.Extend(); !ok {
		t.Fatal("first Extend() = false, want true")
	}
	if ok, _ := s.Extend(); ok {
		t.Fatal("second Extend() = true, want false (source exhausted)")
	}
	if !s.Exhausted() {
		t.Error("Exhausted() = false after empty batch")
	}

	// Further extends never touch the source again.
	callsBefore := source.calls
	if ok, _ := s.Extend(); ok {
		t.Error("Extend() after exhaustion = true, want false")
	}
	if source.calls != callsBefore {
		t.Errorf("source consulted after exhaustion: %d calls, want %d", source.calls, callsBefore)
	}
}

func TestStore_GetExtendsOnDemand(t *testing.T) {
	source := &fakeSource{batches: [][]Record{
		{rec(1), rec(2)},
		{rec(3), rec(4)},
	}}
	s := openStore(t, t.TempDir(), source, false)

	got, err := s.Get(3)
	if err != nil {
		t.Fatalf("Get(3) error = %v", err)
	}
	if got["id"] != float64(4) {
		t.Errorf("Get(3) id = %v, want 4", got["id"])
	}

	if _, err := s.Get(4); !errors.Is(err, ErrEndOfCache) {
		t.Errorf("Get(4) error = %v, want ErrEndOfCache", err)
	}
	if _, err := s.Get(-1); !errors.Is(err, ErrEndOfCache) {
		t.Errorf("Get(-1) error = %v, want ErrEndOfCache", err)
	}
}

func TestStore_NextAndReset(t *testing.T) {
	source := &fakeSource{batches: [][]Record{{rec(1), rec(2)}}}
	s := openStore(t, t.TempDir(), source, false)

	var ids []float64
	for {
		r, err := s.Next()
		if errors.Is(err, ErrEndOfCache) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		ids = append(ids, r["id"].(float64))
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", ids)
	}

	s.Reset()
	r, err := s.Next()
	if err != nil {
		t.Fatalf("Next() after Reset error = %v", err)
	}
	if r["id"] != float64(1) {
		t.Errorf("Next() after Reset id = %v, want 1", r["id"])
	}
}

func TestStore_LenDrains(t *testing.T) {
	source := &fakeSource{batches: [][]Record{
		{rec(1)}, {rec(2)}, {rec(3)},
	}}
	s := openStore(t, t.TempDir(), source, false)

	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
	if !s.Exhausted() {
		t.Error("Exhausted() = false after Len")
	}

	// Drain is idempotent.
	if err := s.Drain(); err != nil {
		t.Errorf("Drain() after exhaustion error = %v", err)
	}
}

func TestStore_CachedAtNeverExtends(t *testing.T) {
	source := &fakeSource{batches: [][]Record{{rec(1)}, {rec(2)}}}
	s := openStore(t, t.TempDir(), source, false)

	if _, err := s.CachedAt(0); !errors.Is(err, ErrEndOfCache) {
		t.Errorf("CachedAt(0) on empty store error = %v, want ErrEndOfCache", err)
	}
	if source.calls != 0 {
		t.Errorf("CachedAt consulted the source: %d calls", source.calls)
	}

	s.Extend()
	r, err := s.CachedAt(0)
	if err != nil {
		t.Fatalf("CachedAt(0) error = %v", err)
	}
	if r["id"] != float64(1) {
		t.Errorf("CachedAt(0) id = %v, want 1", r["id"])
	}
}

func TestStore_SourceErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream failed")
	s := openStore(t, t.TempDir(), &fakeSource{err: wantErr}, false)

	if _, err := s.Extend(); !errors.Is(err, wantErr) {
		t.Errorf("Extend() error = %v, want %v", err, wantErr)
	}
	if s.Exhausted() {
		t.Error("Exhausted() = true after source error, want false")
	}
}

func TestStore_SortCached(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{batches: [][]Record{{rec(3), rec(1), rec(2)}}}
	s := openStore(t, root, source, false)
	s.Extend()

	sourceCalls := source.calls
	err := s.SortCached(func(a, b Record) bool {
		return a["id"].(float64) < b["id"].(float64)
	})
	if err != nil {
		t.Fatalf("SortCached() error = %v", err)
	}
	if source.calls != sourceCalls {
		t.Error("SortCached consulted the source")
	}

	for i, want := range []float64{1, 2, 3} {
		r, _ := s.CachedAt(i)
		if r["id"] != want {
			t.Errorf("record %d id = %v, want %v", i, r["id"], want)
		}
	}

	// The sorted order must survive a reload.
	reopened := openStore(t, root, &fakeSource{}, false)
	r, _ := reopened.CachedAt(0)
	if r["id"] != float64(1) {
		t.Errorf("reopened record 0 id = %v, want 1", r["id"])
	}
}

func TestStore_CorruptFileRebuilds(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "posts", testFingerprint().Hash()+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	source := &fakeSource{batches: [][]Record{{rec(1)}}}
	s := openStore(t, root, source, false)

	if s.CachedLen() != 0 {
		t.Errorf("CachedLen() = %d after corrupt load, want 0", s.CachedLen())
	}
	if ok, err := s.Extend(); !ok || err != nil {
		t.Errorf("Extend() after rebuild = %v, %v, want true, nil", ok, err)
	}
}

func TestStore_ClearOnInit(t *testing.T) {
	root := t.TempDir()
	first := openStore(t, root, &fakeSource{batches: [][]Record{{rec(1), rec(2)}}}, false)
	first.Drain()

	s := openStore(t, root, &fakeSource{batches: [][]Record{{rec(9)}}}, true)
	if s.CachedLen() != 0 {
		t.Errorf("CachedLen() = %d after clearOnInit, want 0", s.CachedLen())
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Len() = %d, want 1 (refetched)", n)
	}
}

func TestStore_ClearResetsEverything(t *testing.T) {
	source := &fakeSource{batches: [][]Record{{rec(1)}}}
	s := openStore(t, t.TempDir(), source, false)
	s.Drain()
	s.Next()

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.CachedLen() != 0 || s.Exhausted() {
		t.Errorf("state after Clear: len=%d exhausted=%v", s.CachedLen(), s.Exhausted())
	}
	if _, ok := s.Tail(); ok {
		t.Error("Tail() found a record after Clear")
	}
}
