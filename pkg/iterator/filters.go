package iterator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nforsman/booru-client/pkg/cache"
)

// Filter decides whether a fetched record is kept. Filters on one iterator
// combine as a logical AND. Descriptor must be canonical: the same logical
// filter always renders the same string, and it feeds the cache fingerprint
// so distinct filter sets never share a cache file.
type Filter interface {
	Match(rec cache.Record) bool
	Descriptor() string
}

// Descriptors returns the sorted canonical descriptors of a filter chain.
func Descriptors(filters []Filter) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		out = append(out, f.Descriptor())
	}
	sort.Strings(out)
	return out
}

func applyFilters(items []cache.Record, filters []Filter) []cache.Record {
	if len(filters) == 0 {
		return items
	}
	kept := make([]cache.Record, 0, len(items))
	for _, item := range items {
		match := true
		for _, f := range filters {
			if !f.Match(item) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, item)
		}
	}
	return kept
}

// ListFilter matches records whose string list at Path contains all members
// of any one group. Allow=true keeps matching records (whitelist),
// Allow=false drops them (blacklist).
type ListFilter struct {
	Path   FieldPath
	Groups [][]string
	Allow  bool
}

// Allowlist builds a whitelist over the string list at path.
func Allowlist(path FieldPath, groups [][]string) *ListFilter {
	return &ListFilter{Path: path, Groups: groups, Allow: true}
}

// Blocklist builds a blacklist over the string list at path.
func Blocklist(path FieldPath, groups [][]string) *ListFilter {
	return &ListFilter{Path: path, Groups: groups, Allow: false}
}

// TagFilter builds a list filter over a tag category of a post record.
// Single tags are treated as one-element groups.
func TagFilter(category string, tags []string, allow bool) *ListFilter {
	groups := make([][]string, 0, len(tags))
	for _, tag := range tags {
		groups = append(groups, []string{tag})
	}
	return &ListFilter{Path: Field("tags", category), Groups: groups, Allow: allow}
}

func (f *ListFilter) Match(rec cache.Record) bool {
	values := f.Path.StringList(rec)
	present := make(map[string]bool, len(values))
	for _, v := range values {
		present[v] = true
	}
	for _, group := range f.Groups {
		all := len(group) > 0
		for _, member := range group {
			if !present[member] {
				all = false
				break
			}
		}
		if all {
			return f.Allow
		}
	}
	return !f.Allow
}

func (f *ListFilter) Descriptor() string {
	groups := make([]string, 0, len(f.Groups))
	for _, group := range f.Groups {
		members := append([]string(nil), group...)
		sort.Strings(members)
		groups = append(groups, strings.Join(members, "+"))
	}
	sort.Strings(groups)
	return fmt.Sprintf("list(allow=%t,path=%s,groups=%s)",
		f.Allow, f.Path, strings.Join(groups, "|"))
}

// NumericRange keeps records whose number at Path lies inside the bounds.
// Unset bounds are open.
type NumericRange struct {
	Path   FieldPath
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// MinValue keeps records with a value of at least min.
func MinValue(path FieldPath, min float64) *NumericRange {
	return &NumericRange{Path: path, Min: min, HasMin: true}
}

// MaxValue keeps records with a value of at most max.
func MaxValue(path FieldPath, max float64) *NumericRange {
	return &NumericRange{Path: path, Max: max, HasMax: true}
}

// Between keeps records with a value inside [min, max].
func Between(path FieldPath, min, max float64) *NumericRange {
	return &NumericRange{Path: path, Min: min, Max: max, HasMin: true, HasMax: true}
}

func (f *NumericRange) Match(rec cache.Record) bool {
	value := f.Path.Number(rec, 0)
	if f.HasMin && value < f.Min {
		return false
	}
	if f.HasMax && value > f.Max {
		return false
	}
	return true
}

func (f *NumericRange) Descriptor() string {
	min, max := "-", "-"
	if f.HasMin {
		min = fmt.Sprintf("%g", f.Min)
	}
	if f.HasMax {
		max = fmt.Sprintf("%g", f.Max)
	}
	return fmt.Sprintf("range(path=%s,min=%s,max=%s)", f.Path, min, max)
}

// ValueEquals keeps records whose value at Path equals Value.
type ValueEquals struct {
	Path  FieldPath
	Value any
}

func (f *ValueEquals) Match(rec cache.Record) bool {
	return f.Path.Get(rec) == f.Value
}

func (f *ValueEquals) Descriptor() string {
	return fmt.Sprintf("equals(path=%s,value=%v)", f.Path, f.Value)
}

// TimeRange keeps records whose RFC 3339 timestamp at Path lies inside the
// bounds. Zero bounds are open.
type TimeRange struct {
	Path FieldPath
	From time.Time
	To   time.Time
}

// WithinSpan keeps records no older than span, measured from now.
func WithinSpan(path FieldPath, span time.Duration, now time.Time) *TimeRange {
	return &TimeRange{Path: path, From: now.Add(-span), To: now}
}

func (f *TimeRange) Match(rec cache.Record) bool {
	raw := f.Path.Text(rec, "")
	if raw == "" {
		return false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

func (f *TimeRange) Descriptor() string {
	from, to := "-", "-"
	if !f.From.IsZero() {
		from = f.From.UTC().Format(time.RFC3339)
	}
	if !f.To.IsZero() {
		to = f.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("time(path=%s,from=%s,to=%s)", f.Path, from, to)
}
