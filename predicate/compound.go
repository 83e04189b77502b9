package predicate

import (
	"strings"

	"github.com/influxdata/kvquery"
)

// Compound joins its children with a boolean operator.
type Compound struct {
	Op       CompoundOp
	Negated  bool
	Children []Predicate
}

// MatchesSubset evaluates the compound as though subset were its only
// children. The planner uses it as the residual filter for the children a
// store scan did not cover. Negation applies to the combined result.
func (c *Compound) MatchesSubset(row kvquery.Row, subset []Predicate) bool {
	var ok bool
	switch c.Op {
	case OpAnd:
		ok = true
		for _, p := range subset {
			if !Matches(p, row) {
				ok = false
				break
			}
		}
	case OpOr:
		for _, p := range subset {
			if Matches(p, row) {
				ok = true
				break
			}
		}
	}
	if c.Negated {
		return !ok
	}
	return ok
}

func (c *Compound) String() string {
	parts := make([]string, len(c.Children))
	for i, p := range c.Children {
		parts[i] = p.String()
	}
	s := "(" + c.Op.String() + ": " + strings.Join(parts, ", ") + ")"
	if c.Negated {
		return "(NOT " + s + ")"
	}
	return s
}
