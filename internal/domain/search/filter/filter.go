package filter

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kailas-cloud/courtside/internal/domain/document"
)

// MaxEntries is the maximum number of entries per filter expression.
const MaxEntries = 32

// Kind is the comparison an entry performs.
type Kind int

// Entry kinds.
const (
	// KindExact requires the field to equal the value.
	KindExact Kind = iota + 1
	// KindAnyOf requires the field's set to intersect the values.
	KindAnyOf
	// KindLessThan requires the numeric field to be strictly below the bound.
	KindLessThan
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindAnyOf:
		return "any_of"
	case KindLessThan:
		return "lt"
	default:
		return "unknown"
	}
}

// Entry is a single constraint over one metadata field.
type Entry struct {
	kind   Kind
	value  string
	values []string
	bound  float64
}

// Exact creates an exact-match entry.
func Exact(value string) Entry { return Entry{kind: KindExact, value: value} }

// AnyOf creates a set entry that matches when the field intersects values.
func AnyOf(values ...string) Entry { return Entry{kind: KindAnyOf, values: slices.Clone(values)} }

// LessThan creates a numeric upper bound entry (exclusive).
func LessThan(bound float64) Entry { return Entry{kind: KindLessThan, bound: bound} }

// Kind returns the entry kind.
func (e Entry) Kind() Kind { return e.kind }

// Value returns the exact-match value.
func (e Entry) Value() string { return e.value }

// Values returns the acceptable set values.
func (e Entry) Values() []string { return e.values }

// Bound returns the exclusive numeric upper bound.
func (e Entry) Bound() float64 { return e.bound }

// Matches evaluates the entry against one field of md.
func (e Entry) Matches(md *document.Metadata, f document.Field) bool {
	switch e.kind {
	case KindExact:
		v, ok := md.Scalar(f)
		return ok && v == e.value
	case KindAnyOf:
		have, ok := md.Set(f)
		if !ok {
			return false
		}
		for _, v := range e.values {
			if slices.Contains(have, v) {
				return true
			}
		}
		return false
	case KindLessThan:
		n, ok := md.Number(f)
		return ok && n < e.bound
	default:
		return false
	}
}

// Expression is a conjunction of per-field entries. The zero value matches everything.
type Expression struct {
	entries map[document.Field]Entry
}

// NewExpression validates and creates an Expression.
func NewExpression(entries map[document.Field]Entry) (Expression, error) {
	if len(entries) > MaxEntries {
		return Expression{}, fmt.Errorf("too many filter entries (max %d)", MaxEntries)
	}
	out := make(map[document.Field]Entry, len(entries))
	for f, e := range entries {
		if f == "" {
			return Expression{}, fmt.Errorf("filter key is required")
		}
		switch e.kind {
		case KindExact:
			if e.value == "" {
				return Expression{}, fmt.Errorf("match value is required for key %q", f)
			}
		case KindAnyOf:
			if len(e.values) == 0 {
				return Expression{}, fmt.Errorf("at least one value is required for key %q", f)
			}
		case KindLessThan:
		default:
			return Expression{}, fmt.Errorf("unknown filter kind for key %q", f)
		}
		out[f] = e
	}
	return Expression{entries: out}, nil
}

// With returns a copy of the expression with f set to e.
func (x Expression) With(f document.Field, e Entry) Expression {
	out := make(map[document.Field]Entry, len(x.entries)+1)
	for k, v := range x.entries {
		out[k] = v
	}
	out[f] = e
	return Expression{entries: out}
}

// Entry returns the entry for f, if any.
func (x Expression) Entry(f document.Field) (Entry, bool) {
	e, ok := x.entries[f]
	return e, ok
}

// Keys returns the filtered fields in sorted order.
func (x Expression) Keys() []document.Field {
	keys := make([]document.Field, 0, len(x.entries))
	for k := range x.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of entries.
func (x Expression) Len() int { return len(x.entries) }

// IsEmpty reports whether the expression has no entries.
func (x Expression) IsEmpty() bool { return len(x.entries) == 0 }

// Matches reports whether doc satisfies every entry of the expression.
func Matches(doc *document.Document, x Expression) bool {
	md := doc.Meta()
	for f, e := range x.entries {
		if !e.Matches(md, f) {
			return false
		}
	}
	return true
}
