// Package merge combines two row sets keyed by primary key with set
// intersection or set union semantics.
//
// Both inputs are sorted in place by primary key before a single linear
// merge pass, so callers must treat the slices they pass in as consumed.
package merge

import (
	"strings"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/ordering"
)

// Op selects the combination performed by Combine.
type Op int

const (
	Intersection Op = iota + 1
	UnionOp
)

func (o Op) String() string {
	switch o {
	case Intersection:
		return "intersect"
	case UnionOp:
		return "union"
	}
	return "unknown"
}

// Intersect returns the rows whose key is present in both a and b, once
// each, ascending by key. On equal keys the row from a is kept.
func Intersect(a, b []kvquery.Row, pk string) []kvquery.Row {
	if len(a) == 0 || len(b) == 0 {
		return []kvquery.Row{}
	}

	sortByKey(a, pk)
	sortByKey(b, pk)

	out := make([]kvquery.Row, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := compareKeys(a[i], b[j], pk); {
		case c == 0:
			out = append(out, a[i])
			i++
			j++
		case c < 0:
			i++
		default:
			j++
		}
	}
	return out
}

// Union returns the rows whose key is present in a or b, once each,
// ascending by key. On equal keys the row from a is kept.
func Union(a, b []kvquery.Row, pk string) []kvquery.Row {
	if len(a) == 0 {
		sortByKey(b, pk)
		return append([]kvquery.Row{}, b...)
	}
	if len(b) == 0 {
		sortByKey(a, pk)
		return append([]kvquery.Row{}, a...)
	}

	sortByKey(a, pk)
	sortByKey(b, pk)

	out := make([]kvquery.Row, 0, max(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b):
			out = append(out, a[i])
			i++
		case i == len(a):
			out = append(out, b[j])
			j++
		default:
			switch c := compareKeys(a[i], b[j], pk); {
			case c == 0:
				out = append(out, a[i])
				i++
				j++
			case c < 0:
				out = append(out, a[i])
				i++
			default:
				out = append(out, b[j])
				j++
			}
		}
	}
	return out
}

// Combine applies op to a and b.
func Combine(op Op, a, b []kvquery.Row, pk string) ([]kvquery.Row, error) {
	switch op {
	case Intersection:
		return Intersect(a, b, pk), nil
	case UnionOp:
		return Union(a, b, pk), nil
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Msg:  "invalid row combination operation",
	}
}

// Fold combines sets left to right with op. An empty input yields an empty
// result.
func Fold(op Op, sets [][]kvquery.Row, pk string) ([]kvquery.Row, error) {
	if len(sets) == 0 {
		return []kvquery.Row{}, nil
	}
	acc := sets[0]
	if len(sets) == 1 {
		sortByKey(acc, pk)
		return acc, nil
	}
	for _, s := range sets[1:] {
		var err error
		if acc, err = Combine(op, acc, s, pk); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func sortByKey(rows []kvquery.Row, pk string) {
	// a single ascending key is always a valid spec
	_ = ordering.Sort(rows, ordering.Ascending(pk))
}

func compareKeys(a, b kvquery.Row, pk string) int {
	av, aok := a[pk]
	bv, bok := b[pk]
	switch {
	case aok == bok:
		return strings.Compare(av, bv)
	case !aok:
		return -1
	}
	return 1
}
