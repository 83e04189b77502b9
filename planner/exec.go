package planner

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/kit/tracing"
	"github.com/influxdata/kvquery/logger"
	"github.com/influxdata/kvquery/merge"
	"github.com/influxdata/kvquery/predicate"
)

// matching returns the rows of cf matching c.
//
// When c can be evaluated efficiently each efficient child is answered by
// the store and the results are merged with c's operator; the remaining
// children filter the merged rows. Otherwise every row is fetched and all
// children filter them.
func (p *Planner) matching(ctx context.Context, cf kvquery.ColumnFamily, c *predicate.Compound) ([]kvquery.Row, error) {
	var (
		rows     []kvquery.Row
		residual []predicate.Predicate
	)

	if predicate.CanEvaluateEfficiently(c, cf.PKColumn, cf.Indexed) {
		var pushdown []predicate.Predicate
		for _, child := range c.Children {
			if predicate.CanEvaluateEfficiently(child, cf.PKColumn, cf.Indexed) {
				pushdown = append(pushdown, child)
			} else {
				residual = append(residual, child)
			}
		}

		sets, err := p.scanEach(ctx, cf, pushdown)
		if err != nil {
			return nil, err
		}

		op := merge.Intersection
		if c.Op == predicate.OpOr {
			op = merge.UnionOp
		}
		if rows, err = merge.Fold(op, sets, cf.PKColumn); err != nil {
			return nil, err
		}
	} else {
		all, err := p.scanAll(ctx, cf)
		if err != nil {
			return nil, err
		}
		rows = all
		residual = c.Children
	}

	if len(residual) == 0 {
		return rows, nil
	}

	out := rows[:0]
	for _, row := range rows {
		if c.MatchesSubset(row, residual) {
			out = append(out, row)
		}
	}
	return out, nil
}

// scanEach answers every predicate with the store. The result sets keep the
// order of preds so folding them is deterministic.
func (p *Planner) scanEach(ctx context.Context, cf kvquery.ColumnFamily, preds []predicate.Predicate) ([][]kvquery.Row, error) {
	sets := make([][]kvquery.Row, len(preds))

	if p.config.ParallelScans < 2 || len(preds) < 2 {
		for i, pred := range preds {
			rows, err := p.scan(ctx, cf, pred)
			if err != nil {
				return nil, err
			}
			sets[i] = rows
		}
		return sets, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.ParallelScans)
	for i, pred := range preds {
		i, pred := i, pred
		g.Go(func() error {
			rows, err := p.scan(ctx, cf, pred)
			if err != nil {
				return err
			}
			sets[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// scan answers a single efficiently evaluable predicate.
func (p *Planner) scan(ctx context.Context, cf kvquery.ColumnFamily, pred predicate.Predicate) ([]kvquery.Row, error) {
	switch pred := pred.(type) {
	case *predicate.Range:
		return p.scanRange(ctx, cf, pred)
	case *predicate.Compound:
		return p.matching(ctx, cf, pred)
	}
	return nil, &errors.Error{
		Code: errors.EInternal,
		Msg:  "predicate " + pred.String() + " cannot be scanned",
	}
}

func (p *Planner) scanRange(ctx context.Context, cf kvquery.ColumnFamily, r *predicate.Range) ([]kvquery.Row, error) {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()
	span.SetTag("predicate", r.String())

	var (
		path   string
		slices []kvquery.KeySlice
		err    error
	)
	switch {
	case r.Column == cf.PKColumn && r.IsExact():
		path = pathPoint
		var (
			ks    kvquery.KeySlice
			found bool
		)
		ks, found, err = p.store.GetPoint(ctx, cf.Name, *r.Start, p.config.MaxColumns)
		if found {
			slices = []kvquery.KeySlice{ks}
		}
	case r.Column == cf.PKColumn:
		path = pathRange
		kr, ok := keyRange(r)
		if !ok {
			logger.FromContext(ctx, p.log).Debug("Empty key range", zap.Stringer("predicate", r))
			return []kvquery.Row{}, nil
		}
		slices, err = p.store.ScanRange(ctx, cf.Name, kr, p.limits())
	case r.IsExact():
		path = pathIndex
		slices, err = p.store.ScanIndex(ctx, cf.Name, r.Column, *r.Start, p.limits())
	default:
		return nil, &errors.Error{
			Code: errors.EInternal,
			Msg:  "range " + r.String() + " is neither on the primary key nor an exact index match",
		}
	}
	if err != nil {
		return nil, tracing.LogError(span, err)
	}

	rows := kvquery.RowsFromSlices(slices, cf.PKColumn)
	if path == pathRange {
		// The scan bounds are inclusive; drop keys an exclusive bound excludes.
		rows = predicate.Filter(r, rows)
	}

	p.metrics.scans.WithLabelValues(path).Inc()
	p.metrics.rowsScanned.WithLabelValues(path).Add(float64(len(rows)))
	logger.FromContext(ctx, p.log).Debug("Scanned",
		zap.String("column_family", cf.Name),
		zap.String("path", path),
		zap.Stringer("predicate", r),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func (p *Planner) scanAll(ctx context.Context, cf kvquery.ColumnFamily) ([]kvquery.Row, error) {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	slices, err := p.store.ScanAll(ctx, cf.Name, p.limits())
	if err != nil {
		return nil, tracing.LogError(span, err)
	}

	rows := kvquery.RowsFromSlices(slices, cf.PKColumn)
	p.metrics.scans.WithLabelValues(pathAll).Inc()
	p.metrics.rowsScanned.WithLabelValues(pathAll).Add(float64(len(rows)))
	logger.FromContext(ctx, p.log).Debug("Scanned",
		zap.String("column_family", cf.Name),
		zap.String("path", pathAll),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// keyRange converts a primary key range into inclusive store bounds. An
// exclusive start becomes its immediate successor s+"\x00". An exclusive end
// is scanned inclusively and removed by re-checking the rows against r, as
// no finite predecessor exists. It reports false when r can match no key.
func keyRange(r *predicate.Range) (kvquery.KeyRange, bool) {
	var kr kvquery.KeyRange
	if r.Start != nil {
		start := *r.Start
		if !r.StartInclusive {
			start += "\x00"
		}
		kr.Start = &start
	}
	if r.End != nil {
		if !r.EndInclusive && *r.End == "" {
			return kr, false
		}
		end := *r.End
		kr.End = &end
	}
	if kr.Start != nil && kr.End != nil && *kr.Start > *kr.End {
		return kr, false
	}
	return kr, true
}
