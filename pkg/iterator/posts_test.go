package iterator

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewPosts_TagBudget(t *testing.T) {
	api := &fakeAPI{root: t.TempDir()}

	tags := make([]string, MaxSearchTags+1)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag_%d", i)
	}

	_, err := NewPosts(PostsConfig{
		API:      api,
		Endpoint: "https://board.example/posts.json",
		Tags:     tags,
	})
	if !errors.Is(err, ErrTooManyTags) {
		t.Fatalf("NewPosts() error = %v, want ErrTooManyTags", err)
	}
	// The budget is enforced before any network traffic.
	if len(api.requests) != 0 {
		t.Errorf("requests made = %d, want 0", len(api.requests))
	}
}

func TestNewPosts_TagBudgetAfterNormalization(t *testing.T) {
	api := &fakeAPI{root: t.TempDir()}

	// 41 raw tags, but duplicates and reserved metatags collapse below the
	// limit.
	tags := make([]string, 0, MaxSearchTags+1)
	for i := 0; i < MaxSearchTags-1; i++ {
		tags = append(tags, fmt.Sprintf("tag_%d", i))
	}
	tags = append(tags, "tag_0", "order:score", "limit:10")

	it, err := NewPosts(PostsConfig{
		API:      api,
		Endpoint: "https://board.example/posts.json",
		Tags:     tags,
	})
	if err != nil {
		t.Fatalf("NewPosts() error = %v", err)
	}
	if it == nil {
		t.Fatal("NewPosts() returned nil iterator")
	}
}

func TestNewPosts_TagsParameter(t *testing.T) {
	api := &fakeAPI{root: t.TempDir()}

	it, err := NewPosts(PostsConfig{
		API:      api,
		Endpoint: "https://board.example/posts.json",
		Tags:     []string{"cloud", "blue_sky", "cloud", "page:3", ""},
		Limit:    320,
	})
	if err != nil {
		t.Fatalf("NewPosts() error = %v", err)
	}

	params := it.Fingerprint().Params
	tags := strings.Fields(params.Get("tags"))

	want := map[string]bool{"blue_sky": true, "cloud": true, "order:id": true}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want exactly %v", tags, want)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q in %v", tag, tags)
		}
	}
	// Canonical ordering keeps the fingerprint stable.
	if !sortedStrings(tags) {
		t.Errorf("tags not sorted: %v", tags)
	}

	if got := params.Get("limit"); got != "320" {
		t.Errorf("limit = %q, want 320", got)
	}
}

func TestNewPosts_SameTagsSameFingerprint(t *testing.T) {
	root := t.TempDir()
	endpoint := "https://board.example/posts.json"

	a, err := NewPosts(PostsConfig{
		API: &fakeAPI{root: root}, Endpoint: endpoint,
		Tags: []string{"cloud", "blue_sky"},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewPosts(PostsConfig{
		API: &fakeAPI{root: root}, Endpoint: endpoint,
		Tags: []string{"blue_sky", "cloud", "blue_sky"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if a.Fingerprint().Hash() != b.Fingerprint().Hash() {
		t.Error("equivalent tag sets produced different fingerprints")
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "dedupe preserves first occurrence",
			in:   []string{"b", "a", "b"},
			want: []string{"b", "a"},
		},
		{
			name: "reserved metatags stripped",
			in:   []string{"cloud", "order:score", "limit:10", "page:2", "tags:x"},
			want: []string{"cloud"},
		},
		{
			name: "metatag-shaped tags with other names survive",
			in:   []string{"rating:s", "score:>10"},
			want: []string{"rating:s", "score:>10"},
		},
		{
			name: "empty strings dropped",
			in:   []string{"", "cloud", ""},
			want: []string{"cloud"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeTags(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeTags() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeTags()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func sortedStrings(values []string) bool {
	for i := 1; i < len(values); i++ {
		if values[i-1] > values[i] {
			return false
		}
	}
	return true
}
