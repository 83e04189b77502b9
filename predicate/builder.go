package predicate

import (
	"strconv"

	"github.com/influxdata/kvquery"
)

// Build converts a caller filter into a predicate tree. The filter is not
// modified.
//
// Single child groups below the root are collapsed into their child. Range
// capable conditions on the same column under the same group are folded
// into one Range where the combined constraint is still one interval.
func Build(f kvquery.Filter) (*Compound, error) {
	var b Builder
	return b.Build(f)
}

// Builder lowers filter trees. Ranges are only mutated while the builder
// owns them; the returned tree is not modified afterwards.
type Builder struct{}

// Build is the method form of the package level Build.
func (b *Builder) Build(f kvquery.Filter) (*Compound, error) {
	switch f := f.(type) {
	case nil:
		return &Compound{Op: OpAnd}, nil
	case kvquery.Condition:
		root := &Compound{Op: OpAnd}
		if err := b.addCondition(root, f); err != nil {
			return nil, err
		}
		return root, nil
	case *kvquery.Group:
		return b.lower(f)
	}
	return nil, invalidOp("unsupported filter node")
}

func (b *Builder) lower(g *kvquery.Group) (*Compound, error) {
	c := &Compound{Negated: g.Negated}
	switch g.Connector {
	case kvquery.And:
		c.Op = OpAnd
	case kvquery.Or:
		c.Op = OpOr
	default:
		return nil, invalidOp("unsupported connector " + strconv.Itoa(int(g.Connector)))
	}

	for _, child := range g.Children {
		child = prune(child)
		switch child := child.(type) {
		case kvquery.Condition:
			if err := b.addCondition(c, child); err != nil {
				return nil, err
			}
		case *kvquery.Group:
			sub, err := b.lower(child)
			if err != nil {
				return nil, err
			}
			c.Children = append(c.Children, sub)
		default:
			return nil, invalidOp("unsupported filter node")
		}
	}
	return c, nil
}

// prune collapses chains of non-negated single child groups.
func prune(f kvquery.Filter) kvquery.Filter {
	for {
		g, ok := f.(*kvquery.Group)
		if !ok || g.Negated || len(g.Children) != 1 {
			return f
		}
		f = g.Children[0]
	}
}

func (b *Builder) addCondition(parent *Compound, cond kvquery.Condition) error {
	switch {
	case cond.Lookup.IsRange():
		for _, child := range parent.Children {
			r, ok := child.(*Range)
			if !ok {
				continue
			}
			folded, err := r.incorporate(cond.Column, cond.Lookup, cond.Value, parent.Op)
			if err != nil {
				return err
			}
			if folded {
				return nil
			}
		}
		r := NewRange(cond.Column)
		if _, err := r.incorporate(cond.Column, cond.Lookup, cond.Value, OpAnd); err != nil {
			return err
		}
		parent.Children = append(parent.Children, r)
		return nil
	case cond.Lookup.IsOperation():
		op, err := NewOperation(cond.Column, cond.Lookup, cond.Value, cond.Values)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children, op)
		return nil
	}
	return invalidOp("unsupported lookup " + strconv.Quote(string(cond.Lookup)))
}
