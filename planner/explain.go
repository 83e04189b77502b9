package planner

import (
	"strconv"

	"github.com/xlab/treeprint"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/predicate"
)

// Explain renders the access plan of q without touching the store: which
// children become point, range or index scans, how their results are
// merged, what is filtered in memory and how rows are ordered.
func (q *Query) Explain() string {
	t := treeprint.New()
	root := t.AddBranch("query " + q.cf.Name)
	if q.root == nil {
		root.AddNode("no filter")
		return t.String()
	}

	explainCompound(root, q.cf, q.root)

	if len(q.ordering) > 0 {
		root.AddNode("order by " + q.ordering.String())
	} else {
		root.AddNode("order by " + q.cf.PKColumn)
	}
	return t.String()
}

func explainCompound(t treeprint.Tree, cf kvquery.ColumnFamily, c *predicate.Compound) {
	if !predicate.CanEvaluateEfficiently(c, cf.PKColumn, cf.Indexed) {
		t.AddNode("full scan " + cf.Name)
		if len(c.Children) > 0 {
			filter := t.AddBranch(residualLabel(c))
			for _, child := range c.Children {
				filter.AddNode(child.String())
			}
		}
		return
	}

	var (
		pushdown = t.AddBranch(mergeLabel(c))
		residual []predicate.Predicate
	)
	for _, child := range c.Children {
		if !predicate.CanEvaluateEfficiently(child, cf.PKColumn, cf.Indexed) {
			residual = append(residual, child)
			continue
		}
		switch child := child.(type) {
		case *predicate.Range:
			pushdown.AddNode(explainRange(cf, child))
		case *predicate.Compound:
			explainCompound(pushdown.AddBranch(child.Op.String()), cf, child)
		}
	}

	if len(residual) > 0 {
		filter := t.AddBranch(residualLabel(c))
		for _, p := range residual {
			filter.AddNode(p.String())
		}
	}
}

func mergeLabel(c *predicate.Compound) string {
	if c.Op == predicate.OpOr {
		return "union"
	}
	return "intersect"
}

func residualLabel(c *predicate.Compound) string {
	label := "filter " + c.Op.String()
	if c.Negated {
		label = "filter NOT " + c.Op.String()
	}
	return label
}

func explainRange(cf kvquery.ColumnFamily, r *predicate.Range) string {
	switch {
	case r.Column == cf.PKColumn && r.IsExact():
		return "point get " + r.Column + "=" + strconv.Quote(*r.Start)
	case r.Column == cf.PKColumn:
		if _, ok := keyRange(r); !ok {
			return "empty range " + r.String()
		}
		return "range scan " + r.String()
	default:
		return "index scan " + r.Column + "=" + strconv.Quote(*r.Start)
	}
}
