package kv

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/influxdata/kvquery"
)

var (
	_ kvquery.Store = (*Service)(nil)
)

// OpPrefix is the prefix for kv errors.
const OpPrefix = "kv/"

// indexVersion is the version suffix of every index bucket name.
const indexVersion = 1

// Service implements kvquery.Store on top of a kv.Store.
//
// Each column family is a bucket of JSON row documents keyed by row key.
// Every indexed column has an index bucket named <family>by<column>v1 whose
// keys are value/key. Columns resolve last-writer-wins by write timestamp,
// and a delete leaves a tombstone that hides every older write.
type Service struct {
	kv     Store
	Logger *zap.Logger

	families map[string]*family
}

type family struct {
	kvquery.ColumnFamily
	bucket  []byte
	indexes map[string]*Index
}

// NewService returns an instance of a Service serving the given column
// families. Initialize must be called before use.
func NewService(log *zap.Logger, kv Store, families ...kvquery.ColumnFamily) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		kv:       kv,
		Logger:   log,
		families: make(map[string]*family, len(families)),
	}
	for _, cf := range families {
		f := &family{
			ColumnFamily: cf,
			bucket:       []byte(cf.Name),
			indexes:      make(map[string]*Index, len(cf.Indexed)),
		}
		for _, col := range cf.Indexed {
			f.indexes[col] = NewIndex(NewIndexMapping(f.bucket, col, indexVersion, indexedValue(col)))
		}
		s.families[cf.Name] = f
	}
	return s
}

// indexedValue derives the index foreign key of a row document: the live
// value of column, or nil when the row has none.
func indexedValue(column string) IndexSourceOnFunc {
	return func(v []byte) ([]byte, error) {
		doc, err := decodeDocument(v)
		if err != nil {
			return nil, err
		}
		val, ok := doc.live(column)
		if !ok {
			return nil, nil
		}
		return []byte(val), nil
	}
}

// Initialize creates the buckets of every column family and brings their
// indexes up to date with rows already stored.
func (s *Service) Initialize(ctx context.Context) error {
	for _, name := range s.names() {
		f := s.families[name]
		if err := s.kv.Update(ctx, func(tx Tx) error {
			_, err := tx.Bucket(f.bucket)
			return err
		}); err != nil {
			return err
		}

		for col, idx := range f.indexes {
			n, err := idx.Initialize(ctx, s.kv)
			if err != nil {
				return UnexpectedIndexError(err)
			}
			if n > 0 {
				s.Logger.Info("Populated index",
					zap.String("column_family", name),
					zap.String("column", col),
					zap.Int("entries", n))
			}
		}
	}
	return nil
}

func (s *Service) names() []string {
	names := make([]string, 0, len(s.families))
	for name := range s.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnFamilies returns the registered column families ordered by name.
func (s *Service) ColumnFamilies() []kvquery.ColumnFamily {
	out := make([]kvquery.ColumnFamily, 0, len(s.families))
	for _, name := range s.names() {
		out = append(out, s.families[name].ColumnFamily)
	}
	return out
}

// ColumnFamily returns the column family registered under name.
func (s *Service) ColumnFamily(name string) (kvquery.ColumnFamily, error) {
	f, err := s.family(name)
	if err != nil {
		return kvquery.ColumnFamily{}, err
	}
	return f.ColumnFamily, nil
}

func (s *Service) family(name string) (*family, error) {
	f, ok := s.families[name]
	if !ok {
		return nil, ErrColumnFamilyNotFound(name)
	}
	return f, nil
}

// VerifyIndexes compares every index of a column family against its rows.
// The result is keyed by indexed column.
func (s *Service) VerifyIndexes(ctx context.Context, cf string) (map[string]IndexDiff, error) {
	f, err := s.family(cf)
	if err != nil {
		return nil, err
	}
	diffs := make(map[string]IndexDiff, len(f.indexes))
	err = s.kv.View(ctx, func(tx Tx) error {
		for col, idx := range f.indexes {
			diff, err := idx.Verify(ctx, tx)
			if err != nil {
				return err
			}
			diffs[col] = diff
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diffs, nil
}

// ScanRange returns the rows whose keys fall within r, tombstones included.
func (s *Service) ScanRange(ctx context.Context, cf string, r kvquery.KeyRange, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	f, err := s.family(cf)
	if err != nil {
		return nil, err
	}

	var seek []byte
	if r.Start != nil {
		seek = []byte(*r.Start)
	}
	var opts []CursorOption
	if r.End != nil {
		opts = append(opts, WithCursorStop([]byte(*r.End)))
	}

	var out []kvquery.KeySlice
	err = s.kv.View(ctx, func(tx Tx) error {
		b, err := tx.Bucket(f.bucket)
		if err != nil {
			return err
		}
		cur, err := b.ForwardCursor(seek, opts...)
		if err != nil {
			return err
		}
		return WalkCursor(ctx, cur, func(k, v []byte) (bool, error) {
			doc, err := decodeDocument(v)
			if err != nil {
				return false, ErrCorruptDocument(k, err)
			}
			out = append(out, doc.slice(string(k), limits.MaxColumns))
			return limits.MaxKeys <= 0 || len(out) < limits.MaxKeys, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanAll returns every row of cf, tombstones included.
func (s *Service) ScanAll(ctx context.Context, cf string, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	return s.ScanRange(ctx, cf, kvquery.KeyRange{}, limits)
}

// GetPoint returns the row stored under key. Deleted rows are not found.
func (s *Service) GetPoint(ctx context.Context, cf string, key string, maxColumns int) (kvquery.KeySlice, bool, error) {
	f, err := s.family(cf)
	if err != nil {
		return kvquery.KeySlice{}, false, err
	}

	var (
		ks    kvquery.KeySlice
		found bool
	)
	err = s.kv.View(ctx, func(tx Tx) error {
		b, err := tx.Bucket(f.bucket)
		if err != nil {
			return err
		}
		v, err := b.Get([]byte(key))
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		doc, err := decodeDocument(v)
		if err != nil {
			return ErrCorruptDocument([]byte(key), err)
		}
		ks = doc.slice(key, maxColumns)
		found = !ks.IsTombstone()
		return nil
	})
	if err != nil {
		return kvquery.KeySlice{}, false, err
	}
	return ks, found, nil
}

// ScanIndex returns the rows whose column currently equals value.
func (s *Service) ScanIndex(ctx context.Context, cf, column, value string, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	f, err := s.family(cf)
	if err != nil {
		return nil, err
	}
	idx, ok := f.indexes[column]
	if !ok {
		return nil, ErrColumnNotIndexed(cf, column)
	}

	var out []kvquery.KeySlice
	err = s.kv.View(ctx, func(tx Tx) error {
		return idx.Walk(ctx, tx, []byte(value), func(k, v []byte) (bool, error) {
			doc, err := decodeDocument(v)
			if err != nil {
				return false, ErrCorruptDocument(k, err)
			}
			// index keys of values containing the separator share prefixes
			if cur, ok := doc.live(column); !ok || cur != value {
				return true, nil
			}
			out = append(out, doc.slice(string(k), limits.MaxColumns))
			return limits.MaxKeys <= 0 || len(out) < limits.MaxKeys, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write upserts every mutation at timestamp ts in a single transaction.
func (s *Service) Write(ctx context.Context, cf string, mutations []kvquery.Mutation, ts uint64) error {
	f, err := s.family(cf)
	if err != nil {
		return err
	}

	err = s.kv.Update(ctx, func(tx Tx) error {
		b, err := tx.Bucket(f.bucket)
		if err != nil {
			return err
		}
		for _, m := range mutations {
			doc, err := s.load(b, m.Key)
			if err != nil {
				return err
			}
			for col, val := range m.Columns {
				prev, hadPrev, changed := doc.set(col, val, ts)
				if !changed {
					continue
				}
				if err := f.reindex(tx, m.Key, col, prev, hadPrev, val); err != nil {
					return err
				}
			}
			if err := s.store(b, m.Key, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Debug("Wrote rows",
		zap.String("column_family", cf),
		zap.Int("rows", len(mutations)),
		zap.Uint64("ts", ts))
	return nil
}

// Delete removes every key at timestamp ts in a single transaction.
func (s *Service) Delete(ctx context.Context, cf string, keys []string, ts uint64) error {
	f, err := s.family(cf)
	if err != nil {
		return err
	}

	err = s.kv.Update(ctx, func(tx Tx) error {
		b, err := tx.Bucket(f.bucket)
		if err != nil {
			return err
		}
		for _, key := range keys {
			doc, err := s.load(b, key)
			if err != nil {
				return err
			}
			for col, val := range doc.remove(ts) {
				idx, ok := f.indexes[col]
				if !ok {
					continue
				}
				if err := idx.Delete(tx, []byte(val), []byte(key)); err != nil {
					return UnexpectedIndexError(err)
				}
			}
			if err := s.store(b, key, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Debug("Deleted rows",
		zap.String("column_family", cf),
		zap.Int("rows", len(keys)),
		zap.Uint64("ts", ts))
	return nil
}

// reindex moves the index entry of key for column from prev to val.
func (f *family) reindex(tx Tx, key, column, prev string, hadPrev bool, val string) error {
	idx, ok := f.indexes[column]
	if !ok || (hadPrev && prev == val) {
		return nil
	}
	if hadPrev {
		if err := idx.Delete(tx, []byte(prev), []byte(key)); err != nil {
			return UnexpectedIndexError(err)
		}
	}
	if val != kvquery.Null {
		if err := idx.Insert(tx, []byte(val), []byte(key)); err != nil {
			return UnexpectedIndexError(err)
		}
	}
	return nil
}

func (s *Service) load(b Bucket, key string) (*document, error) {
	v, err := b.Get([]byte(key))
	if IsNotFound(err) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(v)
	if err != nil {
		return nil, ErrCorruptDocument([]byte(key), err)
	}
	return doc, nil
}

func (s *Service) store(b Bucket, key string, doc *document) error {
	v, err := doc.encode()
	if err != nil {
		return err
	}
	return b.Put([]byte(key), v)
}
