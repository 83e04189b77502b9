package planner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/kit/tracing"
	"github.com/influxdata/kvquery/logger"
	"github.com/influxdata/kvquery/ordering"
	"github.com/influxdata/kvquery/predicate"
)

// Query is a filter over one column family. Its rows are computed on first
// use and kept for the lifetime of the query, so paging and counting never
// rescan the store. A Query is not safe for concurrent use.
type Query struct {
	planner  *Planner
	cf       kvquery.ColumnFamily
	root     *predicate.Compound
	ordering ordering.Spec

	rows     []kvquery.Row
	computed bool
}

// Where attaches the predicate tree built from f, replacing any previous
// one and discarding computed rows.
func (q *Query) Where(f kvquery.Filter) error {
	root, err := compile(f)
	if err != nil {
		return err
	}
	q.root = root
	q.rows, q.computed = nil, false
	return nil
}

// Predicate returns the predicate tree of q, or nil before Where.
func (q *Query) Predicate() *predicate.Compound {
	return q.root
}

// SetOrdering sorts the rows of q by spec. Rows already computed are
// re-sorted in place.
func (q *Query) SetOrdering(spec ordering.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	q.ordering = spec
	if q.computed {
		return ordering.Sort(q.rows, spec)
	}
	return nil
}

// OrderBy is SetOrdering with field names; a leading "-" sorts descending.
func (q *Query) OrderBy(fields ...string) error {
	spec, err := ordering.ParseSpec(fields, nil)
	if err != nil {
		return err
	}
	return q.SetOrdering(spec)
}

func (q *Query) results(ctx context.Context) ([]kvquery.Row, error) {
	if q.root == nil {
		return nil, &errors.Error{
			Code: errors.EEmptyQuery,
			Msg:  "query on " + q.cf.Name + " has no filter",
		}
	}
	if q.computed {
		return q.rows, nil
	}

	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()
	span.SetTag("column_family", q.cf.Name)

	p := q.planner
	start := time.Now()
	efficient := predicate.CanEvaluateEfficiently(q.root, q.cf.PKColumn, q.cf.Indexed)

	rows, err := p.matching(ctx, q.cf, q.root)
	if err != nil {
		return nil, tracing.LogError(span, err)
	}

	// Full scans come back in store order; pushdown results are merged by key
	// already. Sorting by key first keeps paging stable under any ordering.
	spec := ordering.Ascending(q.cf.PKColumn)
	if !efficient {
		if err := ordering.Sort(rows, spec); err != nil {
			return nil, err
		}
	}
	if len(q.ordering) > 0 {
		if err := ordering.Sort(rows, q.ordering); err != nil {
			return nil, err
		}
	}

	plan := "pushdown"
	if !efficient {
		plan = "full_scan"
	}
	p.metrics.queries.WithLabelValues(plan).Inc()
	p.metrics.duration.Observe(time.Since(start).Seconds())
	logger.FromContext(ctx, p.log).Debug("Computed query",
		zap.String("column_family", q.cf.Name),
		zap.Stringer("predicate", q.root),
		zap.String("plan", plan),
		zap.Int("rows", len(rows)))

	q.rows, q.computed = rows, true
	return rows, nil
}

// Fetch returns up to limit rows starting at offset. A negative limit
// returns every row from offset on.
func (q *Query) Fetch(ctx context.Context, offset, limit int) ([]kvquery.Row, error) {
	rows, err := q.results(ctx)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit == 0 || offset >= len(rows) {
		return []kvquery.Row{}, nil
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end], nil
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	rows, err := q.results(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DeleteAll deletes every matching row in a single batch stamped with one
// timestamp and returns the number of rows deleted.
func (q *Query) DeleteAll(ctx context.Context) (int, error) {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	rows, err := q.results(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = row[q.cf.PKColumn]
	}

	ts := q.planner.clock.Next()
	if err := q.planner.store.Delete(ctx, q.cf.Name, keys, ts); err != nil {
		return 0, tracing.LogError(span, err)
	}
	logger.FromContext(ctx, q.planner.log).Debug("Deleted rows",
		zap.String("column_family", q.cf.Name),
		zap.Int("rows", len(keys)),
		zap.Uint64("ts", ts))
	return len(keys), nil
}

// Update sets values on every matching row in a single batch stamped with
// one timestamp and returns the number of rows updated. A value of
// kvquery.Null clears the column. Key columns cannot be updated.
func (q *Query) Update(ctx context.Context, values kvquery.Row) (int, error) {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	for _, col := range keyColumns(q.cf) {
		if _, ok := values[col]; ok {
			return 0, &errors.Error{
				Code: errors.EInvalid,
				Msg:  "key column " + col + " cannot be updated",
			}
		}
	}
	if len(values) == 0 {
		return 0, &errors.Error{
			Code: errors.EEmptyValue,
			Msg:  "update sets no columns",
		}
	}

	rows, err := q.results(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	mutations := make([]kvquery.Mutation, len(rows))
	for i, row := range rows {
		mutations[i] = kvquery.Mutation{
			Key:     row[q.cf.PKColumn],
			Columns: values,
		}
	}

	ts := q.planner.clock.Next()
	if err := q.planner.store.Write(ctx, q.cf.Name, mutations, ts); err != nil {
		return 0, tracing.LogError(span, err)
	}
	logger.FromContext(ctx, q.planner.log).Debug("Updated rows",
		zap.String("column_family", q.cf.Name),
		zap.Int("rows", len(mutations)),
		zap.Uint64("ts", ts))
	return len(mutations), nil
}
