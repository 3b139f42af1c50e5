package counts

import (
	"math"
	"sort"
)

// A CountFilter reduces a Counts to a subset. Filters return a new Counts
// and leave the input untouched.
type CountFilter func(*Counts) *Counts

// Apply runs the filters in order.
func (c *Counts) Apply(filters ...CountFilter) *Counts {
	out := c.Copy()
	for _, f := range filters {
		out = f(out)
	}
	return out
}

// Top keeps the n highest-count pairs.
func Top(n int) CountFilter {
	return func(c *Counts) *Counts {
		out := c.Copy()
		out.Sort(false)
		return out.Slice(0, n)
	}
}

// Bottom keeps the n lowest-count pairs.
func Bottom(n int) CountFilter {
	return func(c *Counts) *Counts {
		out := c.Copy()
		out.Sort(true)
		return out.Slice(0, n)
	}
}

// MinCount keeps pairs whose count is at least min.
func MinCount(min int) CountFilter {
	return keep(func(p Pair) bool { return p.Count >= min })
}

// MaxCount keeps pairs whose count is at most max.
func MaxCount(max int) CountFilter {
	return keep(func(p Pair) bool { return p.Count <= max })
}

// Range keeps pairs with min <= count <= max.
func Range(min, max int) CountFilter {
	return keep(func(p Pair) bool { return p.Count >= min && p.Count <= max })
}

// ValueAllow keeps only pairs whose value is in the set.
func ValueAllow(values ...string) CountFilter {
	set := toSet(values)
	return keep(func(p Pair) bool { return set[p.Value] })
}

// ValueDeny drops pairs whose value is in the set.
func ValueDeny(values ...string) CountFilter {
	set := toSet(values)
	return keep(func(p Pair) bool { return !set[p.Value] })
}

// Percentile keeps pairs whose count is at or above the pth percentile of
// the counts, with p in [0, 100]; values outside that range are clamped.
// The percentile uses linear interpolation between closest ranks.
func Percentile(p float64) CountFilter {
	return func(c *Counts) *Counts {
		if c.Len() == 0 {
			return c.Copy()
		}
		sorted := make([]int, c.Len())
		for i, pair := range c.pairs {
			sorted[i] = pair.Count
		}
		sort.Ints(sorted)

		rank := p / 100 * float64(len(sorted)-1)
		if rank < 0 {
			rank = 0
		}
		if max := float64(len(sorted) - 1); rank > max {
			rank = max
		}
		lo := int(math.Floor(rank))
		hi := int(math.Ceil(rank))
		threshold := float64(sorted[lo])
		if hi != lo {
			frac := rank - float64(lo)
			threshold += frac * float64(sorted[hi]-sorted[lo])
		}

		return keep(func(pair Pair) bool { return float64(pair.Count) >= threshold })(c)
	}
}

func keep(pred func(Pair) bool) CountFilter {
	return func(c *Counts) *Counts {
		out := New()
		for _, p := range c.pairs {
			if pred(p) {
				out.pairs = append(out.pairs, p)
			}
		}
		return out
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
