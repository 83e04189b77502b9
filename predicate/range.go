package predicate

import (
	"strconv"
	"strings"

	"github.com/influxdata/kvquery"
)

// Range is an interval over the values of a single column. A nil bound
// leaves that side open; the empty string is a real bound.
type Range struct {
	Column         string
	Start          *string
	StartInclusive bool
	End            *string
	EndInclusive   bool
}

// NewRange returns an unbounded range over column.
func NewRange(column string) *Range {
	return &Range{Column: column, StartInclusive: true, EndInclusive: true}
}

// Exact returns the single point range column == value.
func Exact(column, value string) *Range {
	return &Range{Column: column, Start: &value, StartInclusive: true, End: &value, EndInclusive: true}
}

// IsExact reports whether the range is a single inclusive point.
func (r *Range) IsExact() bool {
	return r.Start != nil && r.End != nil && *r.Start == *r.End && r.StartInclusive && r.EndInclusive
}

// Contains reports whether value falls inside the range.
func (r *Range) Contains(value string) bool {
	if r.Start != nil {
		if r.StartInclusive {
			if value < *r.Start {
				return false
			}
		} else if value <= *r.Start {
			return false
		}
	}
	if r.End != nil {
		if r.EndInclusive {
			if value > *r.End {
				return false
			}
		} else if value >= *r.End {
			return false
		}
	}
	return true
}

func (r *Range) String() string {
	var b strings.Builder
	b.WriteString("(RANGE: ")
	if r.Start != nil {
		b.WriteString(strconv.Quote(*r.Start))
		if r.StartInclusive {
			b.WriteString("<=")
		} else {
			b.WriteString("<")
		}
	}
	b.WriteString(r.Column)
	if r.End != nil {
		if r.EndInclusive {
			b.WriteString("<=")
		} else {
			b.WriteString("<")
		}
		b.WriteString(strconv.Quote(*r.End))
	}
	b.WriteString(")")
	return b.String()
}

// Increment returns the smallest string greater than every string that has
// prefix s, by raising the last byte by one. A 0xff byte carries into the
// byte before it. ok is false when no such string exists, which is the case
// for the empty string and for strings made only of 0xff bytes.
func Increment(s string) (next string, ok bool) {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// lower and upper bounds of an interval, used when folding.
type bound struct {
	v    *string
	incl bool
}

// lowerLess reports whether lower bound a admits more values than b.
func lowerLess(a, b bound) bool {
	switch {
	case a.v == nil:
		return b.v != nil
	case b.v == nil:
		return false
	case *a.v != *b.v:
		return *a.v < *b.v
	}
	return a.incl && !b.incl
}

// upperGreater reports whether upper bound a admits more values than b.
func upperGreater(a, b bound) bool {
	switch {
	case a.v == nil:
		return b.v != nil
	case b.v == nil:
		return false
	case *a.v != *b.v:
		return *a.v > *b.v
	}
	return a.incl && !b.incl
}

// gap reports whether an interval ending at upper and another starting at
// lower leave at least one value uncovered between them.
func gap(upper, lower bound) bool {
	if upper.v == nil || lower.v == nil {
		return false
	}
	if *upper.v != *lower.v {
		return *upper.v < *lower.v
	}
	return !upper.incl && !lower.incl
}

func (r *Range) lower() bound { return bound{r.Start, r.StartInclusive} }
func (r *Range) upper() bound { return bound{r.End, r.EndInclusive} }

// incorporate folds column <lookup> value into r under the parent operator
// op. It reports false, without modifying r, when the constraint cannot be
// represented by a single interval together with r.
func (r *Range) incorporate(column string, lookup kvquery.Lookup, value string, op CompoundOp) (bool, error) {
	if column != r.Column {
		return false, nil
	}

	switch op {
	case OpAnd:
		return r.tighten(lookup, value)
	case OpOr:
		return r.widen(lookup, value)
	}
	return false, invalidOp("cannot fold a range under operator " + op.String())
}

// tighten intersects r with the constraint. A bound only replaces the
// current one when it is at least as tight.
func (r *Range) tighten(lookup kvquery.Lookup, value string) (bool, error) {
	switch lookup {
	case kvquery.LookupGT:
		if r.Start == nil || value >= *r.Start {
			r.Start, r.StartInclusive = &value, false
			return true, nil
		}
	case kvquery.LookupGTE:
		if r.Start == nil || value > *r.Start {
			r.Start, r.StartInclusive = &value, true
			return true, nil
		}
	case kvquery.LookupLT:
		if r.End == nil || value <= *r.End {
			r.End, r.EndInclusive = &value, false
			return true, nil
		}
	case kvquery.LookupLTE:
		if r.End == nil || value < *r.End {
			r.End, r.EndInclusive = &value, true
			return true, nil
		}
	case kvquery.LookupExact:
		if r.Contains(value) {
			r.Start, r.End = &value, &value
			r.StartInclusive, r.EndInclusive = true, true
			return true, nil
		}
	case kvquery.LookupStartsWith:
		end, bounded := Increment(value)
		if (r.Start == nil || value > *r.Start) && (r.End == nil || (bounded && end <= *r.End)) {
			r.Start, r.StartInclusive = &value, true
			r.End, r.EndInclusive = nil, true
			if bounded {
				r.End, r.EndInclusive = &end, false
			}
			return true, nil
		}
	default:
		return false, invalidOp("unsupported range lookup " + strconv.Quote(string(lookup)))
	}
	return false, nil
}

// widen unions r with the constraint. The fold only succeeds when the two
// intervals overlap or touch, in which case r becomes their hull. An exact
// match never widens: it only folds when r already covers the value.
func (r *Range) widen(lookup kvquery.Lookup, value string) (bool, error) {
	var n Range
	switch lookup {
	case kvquery.LookupGT:
		n = Range{Start: &value, StartInclusive: false, EndInclusive: true}
	case kvquery.LookupGTE:
		n = Range{Start: &value, StartInclusive: true, EndInclusive: true}
	case kvquery.LookupLT:
		n = Range{StartInclusive: true, End: &value, EndInclusive: false}
	case kvquery.LookupLTE:
		n = Range{StartInclusive: true, End: &value, EndInclusive: true}
	case kvquery.LookupExact:
		return r.Contains(value), nil
	case kvquery.LookupStartsWith:
		n = Range{Start: &value, StartInclusive: true, EndInclusive: true}
		if end, ok := Increment(value); ok {
			n.End, n.EndInclusive = &end, false
		}
	default:
		return false, invalidOp("unsupported range lookup " + strconv.Quote(string(lookup)))
	}

	if gap(r.upper(), n.lower()) || gap(n.upper(), r.lower()) {
		return false, nil
	}

	if lowerLess(n.lower(), r.lower()) {
		r.Start, r.StartInclusive = n.Start, n.StartInclusive
	}
	if upperGreater(n.upper(), r.upper()) {
		r.End, r.EndInclusive = n.End, n.EndInclusive
	}
	return true, nil
}
