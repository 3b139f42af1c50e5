// Package iterator implements the pagination cursor protocols over the
// persistent cache: page-number and ID-cursor iteration with per-page
// filtering, plus the typed field access the filters are built on.
package iterator

import (
	"fmt"
	"strings"

	"github.com/nforsman/booru-client/pkg/cache"
)

type step struct {
	key     string
	index   int
	indexed bool
}

// FieldPath is a typed accessor into nested records: an ordered list of
// string keys and integer indexes with an explicit default. A missing step
// yields the default instead of failing.
type FieldPath struct {
	steps []step
	def   any
}

// Field builds a path of nested map keys.
func Field(keys ...string) FieldPath {
	p := FieldPath{}
	for _, key := range keys {
		p.steps = append(p.steps, step{key: key})
	}
	return p
}

// At appends an index step into a list value.
func (p FieldPath) At(i int) FieldPath {
	steps := append(append([]step(nil), p.steps...), step{index: i, indexed: true})
	return FieldPath{steps: steps, def: p.def}
}

// Default returns a copy of the path with the given fallback value.
func (p FieldPath) Default(def any) FieldPath {
	return FieldPath{steps: p.steps, def: def}
}

// Get resolves the path against a value.
func (p FieldPath) Get(value any) any {
	target := value
	for _, st := range p.steps {
		if rec, ok := target.(cache.Record); ok {
			target = map[string]any(rec)
		}
		if st.indexed {
			list, ok := target.([]any)
			if !ok || st.index < 0 || st.index >= len(list) {
				return p.def
			}
			target = list[st.index]
			continue
		}
		obj, ok := target.(map[string]any)
		if !ok {
			return p.def
		}
		next, ok := obj[st.key]
		if !ok {
			return p.def
		}
		target = next
	}
	return target
}

// Number resolves the path as a float64, falling back to def. JSON numbers
// decode as float64; integer types are widened.
func (p FieldPath) Number(value any, def float64) float64 {
	switch v := p.Get(value).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Text resolves the path as a string, falling back to def.
func (p FieldPath) Text(value any, def string) string {
	if s, ok := p.Get(value).(string); ok {
		return s
	}
	return def
}

// StringList resolves the path as a list of strings. Non-string elements
// are skipped; a missing or scalar value yields nil.
func (p FieldPath) StringList(value any) []string {
	list, ok := p.Get(value).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// String renders the path canonically, e.g. "tags->artist" or "score->[0]".
func (p FieldPath) String() string {
	parts := make([]string, 0, len(p.steps))
	for _, st := range p.steps {
		if st.indexed {
			parts = append(parts, fmt.Sprintf("[%d]", st.index))
		} else {
			parts = append(parts, st.key)
		}
	}
	return strings.Join(parts, "->")
}
