// Package planner turns filter trees into store scans. Parts of a filter that
// a range scan, point lookup or index lookup can answer are pushed down to
// the store, their results merged by primary key, and whatever remains is
// evaluated in memory on the fetched rows.
package planner

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/kit/tracing"
	"github.com/influxdata/kvquery/logger"
	"github.com/influxdata/kvquery/predicate"
	"github.com/influxdata/kvquery/timestamp"
)

// Planner builds queries over the column families of a store.
type Planner struct {
	store    kvquery.Store
	families map[string]kvquery.ColumnFamily
	clock    *timestamp.Source
	config   Config
	log      *zap.Logger
	metrics  *plannerMetrics
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger of the planner.
func WithLogger(log *zap.Logger) Option {
	return func(p *Planner) {
		p.log = log
	}
}

// WithConfig sets the scan limits and parallelism of the planner.
func WithConfig(c Config) Option {
	return func(p *Planner) {
		p.config = c
	}
}

// WithTimestampSource sets the source of write timestamps. Planners sharing
// a store within one process should share a source.
func WithTimestampSource(s *timestamp.Source) Option {
	return func(p *Planner) {
		p.clock = s
	}
}

// New returns a Planner over store serving families.
func New(store kvquery.Store, families []kvquery.ColumnFamily, opts ...Option) *Planner {
	p := &Planner{
		store:    store,
		families: make(map[string]kvquery.ColumnFamily, len(families)),
		config:   NewConfig(),
		log:      zap.NewNop(),
		metrics:  newPlannerMetrics(),
	}
	for _, cf := range families {
		p.families[cf.Name] = cf
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = timestamp.New()
	}
	return p
}

// ColumnFamilies returns the column families known to p ordered by name.
func (p *Planner) ColumnFamilies() []kvquery.ColumnFamily {
	out := make([]kvquery.ColumnFamily, 0, len(p.families))
	for _, cf := range p.families {
		out = append(out, cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *Planner) family(name string) (kvquery.ColumnFamily, error) {
	cf, ok := p.families[name]
	if !ok {
		return kvquery.ColumnFamily{}, &errors.Error{
			Code: errors.ENotFound,
			Msg:  "column family " + name + " not found",
		}
	}
	return cf, nil
}

func (p *Planner) limits() kvquery.ScanLimits {
	return kvquery.ScanLimits{
		MaxKeys:    p.config.MaxKeys,
		MaxColumns: p.config.MaxColumns,
	}
}

// Query returns a query over cf with no filter attached. It must be given
// one with Where before rows can be read.
func (p *Planner) Query(cf string) (*Query, error) {
	family, err := p.family(cf)
	if err != nil {
		return nil, err
	}
	return &Query{planner: p, cf: family}, nil
}

// Build returns a query over cf selecting the rows matching f. A nil filter
// selects every row.
func (p *Planner) Build(cf string, f kvquery.Filter) (*Query, error) {
	q, err := p.Query(cf)
	if err != nil {
		return nil, err
	}
	if err := q.Where(f); err != nil {
		return nil, err
	}
	return q, nil
}

// Insert stores a new row in cf and returns its key.
//
// The key is the value of the primary key column when present. Otherwise it
// is joined from the compound key fields of the column family, which must
// all be set, or a random UUID when the family has no compound key. A key
// given together with compound key fields must agree with them. The key is
// stored as a column too so a row is never a tombstone.
func (p *Planner) Insert(ctx context.Context, cf string, values kvquery.Row) (string, error) {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	family, err := p.family(cf)
	if err != nil {
		return "", err
	}

	key, err := insertKey(family, values)
	if err != nil {
		return "", tracing.LogError(span, err)
	}

	data := values.Clone()
	data[family.PKColumn] = key

	ts := p.clock.Next()
	if err := p.store.Write(ctx, cf, []kvquery.Mutation{{Key: key, Columns: data}}, ts); err != nil {
		return "", tracing.LogError(span, err)
	}

	logger.FromContext(ctx, p.log).Debug("Inserted row",
		zap.String("column_family", cf),
		zap.String("key", key),
		zap.Uint64("ts", ts))
	return key, nil
}

func insertKey(cf kvquery.ColumnFamily, values kvquery.Row) (string, error) {
	ck := cf.CompoundKey
	if key, ok := values[cf.PKColumn]; ok && key != "" && key != kvquery.Null {
		if ck == nil {
			return key, nil
		}
		parts := strings.Split(key, ck.Sep())
		for i, field := range ck.Fields {
			if i >= len(parts) {
				break
			}
			if v, ok := values[field]; ok && v != parts[i] {
				return "", &errors.Error{
					Code: errors.EConflict,
					Msg:  "key " + key + " does not match compound key field " + field,
				}
			}
		}
		return key, nil
	}

	if ck == nil {
		return uuid.NewString(), nil
	}

	parts := make([]string, len(ck.Fields))
	for i, field := range ck.Fields {
		v, ok := values[field]
		if !ok || v == kvquery.Null {
			return "", &errors.Error{
				Code: errors.EInvalid,
				Msg:  "compound key field " + field + " must be set",
			}
		}
		parts[i] = v
	}
	return strings.Join(parts, ck.Sep()), nil
}

// keyColumns returns the columns an update may not change.
func keyColumns(cf kvquery.ColumnFamily) []string {
	cols := []string{cf.PKColumn}
	if cf.CompoundKey != nil {
		cols = append(cols, cf.CompoundKey.Fields...)
	}
	return cols
}

// compile lowers f into a predicate tree.
func compile(f kvquery.Filter) (*predicate.Compound, error) {
	var b predicate.Builder
	return b.Build(f)
}
