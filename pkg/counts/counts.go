// Package counts provides an explicit value/count container for aggregating
// record attributes, with the slice, merge and threshold operations the
// analysis tools need.
package counts

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nforsman/booru-client/pkg/cache"
	"github.com/nforsman/booru-client/pkg/iterator"
)

// Pair is one counted value.
type Pair struct {
	Value string
	Count int
}

// Counts is an ordered list of value/count pairs.
type Counts struct {
	pairs []Pair
}

// New creates a Counts from explicit pairs.
func New(pairs ...Pair) *Counts {
	return &Counts{pairs: append([]Pair(nil), pairs...)}
}

// RecordSource is the iteration surface counts aggregates over. Both
// iterator kinds satisfy it.
type RecordSource interface {
	Reset()
	Next() (cache.Record, error)
}

// Cached wraps a store so aggregation covers only records already on disk,
// never extending from the upstream source.
func Cached(store *cache.Store) RecordSource {
	return &cachedSource{store: store}
}

type cachedSource struct {
	store  *cache.Store
	cursor int
}

func (s *cachedSource) Reset() { s.cursor = 0 }

func (s *cachedSource) Next() (cache.Record, error) {
	rec, err := s.store.CachedAt(s.cursor)
	if err != nil {
		return nil, err
	}
	s.cursor++
	return rec, nil
}

// Attribute tallies the values at path across every record of the source,
// expanding list values element-wise. The result is sorted by count.
func Attribute(source RecordSource, path iterator.FieldPath, ascending bool) (*Counts, error) {
	tally := make(map[string]int)

	source.Reset()
	for {
		rec, err := source.Next()
		if errors.Is(err, cache.ErrEndOfCache) {
			break
		}
		if err != nil {
			return nil, err
		}

		value := path.Get(rec)
		switch v := value.(type) {
		case nil:
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					tally[s]++
				}
			}
		case string:
			tally[v]++
		default:
			tally[fmt.Sprint(v)]++
		}
	}

	c := &Counts{pairs: make([]Pair, 0, len(tally))}
	for value, count := range tally {
		c.pairs = append(c.pairs, Pair{Value: value, Count: count})
	}
	c.Sort(ascending)
	return c, nil
}

// Len returns the number of pairs.
func (c *Counts) Len() int { return len(c.pairs) }

// At returns the pair at index i.
func (c *Counts) At(i int) Pair { return c.pairs[i] }

// Pairs returns a copy of the pairs.
func (c *Counts) Pairs() []Pair {
	return append([]Pair(nil), c.pairs...)
}

// Values returns the values in order.
func (c *Counts) Values() []string {
	out := make([]string, len(c.pairs))
	for i, p := range c.pairs {
		out[i] = p.Value
	}
	return out
}

// Slice returns a copy of the pairs in [i, j).
func (c *Counts) Slice(i, j int) *Counts {
	if i < 0 {
		i = 0
	}
	if j > len(c.pairs) {
		j = len(c.pairs)
	}
	if i >= j {
		return New()
	}
	return New(c.pairs[i:j]...)
}

// Copy returns an independent copy.
func (c *Counts) Copy() *Counts {
	return New(c.pairs...)
}

// Sort orders by count, then value, ascending or descending.
func (c *Counts) Sort(ascending bool) {
	sort.SliceStable(c.pairs, func(i, j int) bool {
		a, b := c.pairs[i], c.pairs[j]
		less := a.Count < b.Count || (a.Count == b.Count && a.Value < b.Value)
		if ascending {
			return less
		}
		return !less
	})
}

// Merge sums two count sets by value. The result is unsorted.
func (c *Counts) Merge(other *Counts) *Counts {
	merged := make(map[string]int, len(c.pairs)+other.Len())
	order := make([]string, 0, len(c.pairs)+other.Len())
	for _, p := range c.pairs {
		if _, seen := merged[p.Value]; !seen {
			order = append(order, p.Value)
		}
		merged[p.Value] += p.Count
	}
	for _, p := range other.pairs {
		if _, seen := merged[p.Value]; !seen {
			order = append(order, p.Value)
		}
		merged[p.Value] += p.Count
	}

	out := &Counts{pairs: make([]Pair, 0, len(order))}
	for _, value := range order {
		out.pairs = append(out.pairs, Pair{Value: value, Count: merged[value]})
	}
	return out
}

// Pop removes and returns the pair at index i.
func (c *Counts) Pop(i int) Pair {
	p := c.pairs[i]
	c.pairs = append(c.pairs[:i], c.pairs[i+1:]...)
	return p
}

// Find returns the index of the first pair with the value, or -1.
func (c *Counts) Find(value string) int {
	for i, p := range c.pairs {
		if p.Value == value {
			return i
		}
	}
	return -1
}

// Min returns the smallest count; 0 when empty.
func (c *Counts) Min() int {
	if len(c.pairs) == 0 {
		return 0
	}
	min := c.pairs[0].Count
	for _, p := range c.pairs[1:] {
		if p.Count < min {
			min = p.Count
		}
	}
	return min
}

// Max returns the largest count; 0 when empty.
func (c *Counts) Max() int {
	if len(c.pairs) == 0 {
		return 0
	}
	max := c.pairs[0].Count
	for _, p := range c.pairs[1:] {
		if p.Count > max {
			max = p.Count
		}
	}
	return max
}

// Mean returns the average count; 0 when empty.
func (c *Counts) Mean() float64 {
	if len(c.pairs) == 0 {
		return 0
	}
	sum := 0
	for _, p := range c.pairs {
		sum += p.Count
	}
	return float64(sum) / float64(len(c.pairs))
}

// Median returns the median count; 0 when empty.
func (c *Counts) Median() float64 {
	n := len(c.pairs)
	if n == 0 {
		return 0
	}
	sorted := make([]int, n)
	for i, p := range c.pairs {
		sorted[i] = p.Count
	}
	sort.Ints(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
