// Package predicate turns caller filter trees into predicate trees, decides
// which parts of a tree the store can evaluate with its own scans, and
// evaluates the rest against rows in memory.
//
// A predicate is one of three kinds:
//
//	*Range      single column interval, exact match or prefix
//	*Operation  any other comparison, always evaluated in memory
//	*Compound   AND / OR over children, optionally negated
package predicate

import (
	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
)

// Predicate is implemented by *Range, *Operation and *Compound only.
type Predicate interface {
	predicate()
	String() string
}

func (*Range) predicate()     {}
func (*Operation) predicate() {}
func (*Compound) predicate()  {}

// CompoundOp is the boolean operator of a Compound.
type CompoundOp int

const (
	OpAnd CompoundOp = iota + 1
	OpOr
)

func (o CompoundOp) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	}
	return "UNKNOWN"
}

// CanEvaluateEfficiently reports whether p can be answered by store scans
// rather than by filtering a full scan.
//
// A range is efficient on the primary key, or as an exact match on an
// indexed column; index range scans are never pushed down. Operations never
// are. A negated compound never is; an AND is when any child is and an OR
// only when every child is.
func CanEvaluateEfficiently(p Predicate, pk string, indexed []string) bool {
	switch p := p.(type) {
	case *Range:
		if p.Column == pk {
			return true
		}
		return p.IsExact() && contains(indexed, p.Column)
	case *Operation:
		return false
	case *Compound:
		if p.Negated {
			return false
		}
		switch p.Op {
		case OpAnd:
			for _, c := range p.Children {
				if CanEvaluateEfficiently(c, pk, indexed) {
					return true
				}
			}
			return false
		case OpOr:
			for _, c := range p.Children {
				if !CanEvaluateEfficiently(c, pk, indexed) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// Matches evaluates p against row in memory.
func Matches(p Predicate, row kvquery.Row) bool {
	switch p := p.(type) {
	case *Range:
		v, ok := row[p.Column]
		return ok && p.Contains(v)
	case *Operation:
		return p.matches(row)
	case *Compound:
		return p.MatchesSubset(row, p.Children)
	}
	return false
}

// Filter returns the rows of rows matching p. The input slice is reused.
func Filter(p Predicate, rows []kvquery.Row) []kvquery.Row {
	out := rows[:0]
	for _, r := range rows {
		if Matches(p, r) {
			out = append(out, r)
		}
	}
	return out
}

func invalidOp(msg string) error {
	return &errors.Error{
		Code: errors.EInvalidPredicateOp,
		Msg:  msg,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
