package kv

import (
	"bytes"
	"context"
	"fmt"
)

const (
	indexSeparator       = '/'
	defaultPopulateBatch = 100
)

// Index maintains a secondary index bucket over the rows of a column family
// bucket. Each entry is keyed "<value>/<pk>" and holds the primary key, so
// the rows holding a value are found with a single prefix scan.
//
// The index is written by the caller inside the same transaction as the row
// itself (Insert and Delete). Populate and Verify reconcile it with the
// source bucket as a whole.
type Index struct {
	IndexMapping

	populateBatchSize int
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithIndexPopulateBatchSize sets how many entries Populate inserts per
// update transaction.
func WithIndexPopulateBatchSize(n int) IndexOption {
	return func(i *Index) {
		if n > 0 {
			i.populateBatchSize = n
		}
	}
}

// IndexMapping names the source and index buckets and derives the indexed
// value of a source row. A nil value means the row is not indexed.
type IndexMapping interface {
	SourceBucket() []byte
	IndexBucket() []byte
	IndexSourceOn(value []byte) (foreignKey []byte, err error)
}

// IndexSourceOnFunc derives the indexed value of a source row.
type IndexSourceOnFunc func([]byte) ([]byte, error)

type indexMapping struct {
	source []byte
	index  []byte
	fn     IndexSourceOnFunc
}

func (m indexMapping) SourceBucket() []byte { return m.source }

func (m indexMapping) IndexBucket() []byte { return m.index }

func (m indexMapping) IndexSourceOn(v []byte) ([]byte, error) { return m.fn(v) }

// NewIndexMapping maps sourceBucket to the index bucket
// "<source>by<column>v<version>", e.g. hostsbyipv1.
func NewIndexMapping(sourceBucket []byte, column string, version int, fn IndexSourceOnFunc) IndexMapping {
	return indexMapping{
		source: sourceBucket,
		index:  []byte(fmt.Sprintf("%sby%sv%d", sourceBucket, column, version)),
		fn:     fn,
	}
}

// NewIndex returns an Index for mapping.
func NewIndex(mapping IndexMapping, opts ...IndexOption) *Index {
	i := &Index{
		IndexMapping:      mapping,
		populateBatchSize: defaultPopulateBatch,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Initialize creates both buckets and indexes any rows already present in
// the source. It returns the number of entries added.
func (i *Index) Initialize(ctx context.Context, store Store) (int, error) {
	err := store.Update(ctx, func(tx Tx) error {
		_, _, err := i.buckets(tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return i.Populate(ctx, store)
}

func (i *Index) buckets(tx Tx) (source, index Bucket, err error) {
	if source, err = tx.Bucket(i.SourceBucket()); err != nil {
		return nil, nil, err
	}
	if index, err = tx.Bucket(i.IndexBucket()); err != nil {
		return nil, nil, err
	}
	return source, index, nil
}

func indexKey(value, pk []byte) []byte {
	k := make([]byte, 0, len(value)+1+len(pk))
	k = append(k, value...)
	k = append(k, indexSeparator)
	return append(k, pk...)
}

// indexKeyParts recovers the indexed value from an entry key given the
// primary key stored in the entry. Either part may contain the separator.
func indexKeyParts(key, pk []byte) ([]byte, error) {
	cut := len(key) - len(pk) - 1
	if cut < 0 || !bytes.HasSuffix(key, pk) || key[cut] != indexSeparator {
		return nil, fmt.Errorf("malformed index key %q for %q", key, pk)
	}
	return key[:cut], nil
}

// Insert adds the entry mapping value to pk.
func (i *Index) Insert(tx Tx, value, pk []byte) error {
	bkt, err := tx.Bucket(i.IndexBucket())
	if err != nil {
		return err
	}
	return bkt.Put(indexKey(value, pk), pk)
}

// Delete removes the entry mapping value to pk.
func (i *Index) Delete(tx Tx, value, pk []byte) error {
	bkt, err := tx.Bucket(i.IndexBucket())
	if err != nil {
		return err
	}
	return bkt.Delete(indexKey(value, pk))
}

// Walk calls visit with the primary key and source row of every entry for
// value, in primary key order. Entries whose row is gone are skipped.
func (i *Index) Walk(ctx context.Context, tx Tx, value []byte, visit VisitFunc) error {
	source, index, err := i.buckets(tx)
	if err != nil {
		return err
	}

	prefix := indexKey(value, nil)
	cursor, err := index.ForwardCursor(prefix, WithCursorPrefix(prefix))
	if err != nil {
		return err
	}

	return WalkCursor(ctx, cursor, func(_, pk []byte) (bool, error) {
		row, err := source.Get(pk)
		switch {
		case IsNotFound(err):
			return true, nil
		case err != nil:
			return false, err
		}
		return visit(pk, row)
	})
}

type indexEntry struct {
	key, pk []byte
}

// Populate inserts every entry the source calls for but the index lacks,
// in batches of the configured size. It returns the number inserted.
func (i *Index) Populate(ctx context.Context, store Store) (int, error) {
	var missing []indexEntry
	err := store.View(ctx, func(tx Tx) error {
		source, index, err := i.buckets(tx)
		if err != nil {
			return err
		}
		return i.walkMissing(ctx, source, index, func(key, pk []byte) {
			missing = append(missing, indexEntry{key: key, pk: append([]byte(nil), pk...)})
		})
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for len(missing) > 0 {
		batch := missing
		if len(batch) > i.populateBatchSize {
			batch = batch[:i.populateBatchSize]
		}
		missing = missing[len(batch):]

		err := store.Update(ctx, func(tx Tx) error {
			bkt, err := tx.Bucket(i.IndexBucket())
			if err != nil {
				return err
			}
			for _, e := range batch {
				if err := bkt.Put(e.key, e.pk); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return n, err
		}
		n += len(batch)
	}
	return n, nil
}

// IndexDiff lists the disagreements between an index and its source.
type IndexDiff struct {
	// Source maps primary keys to values of entries whose row is gone.
	Source map[string]string
	// Index maps entry keys the source calls for but the index lacks to
	// their primary keys.
	Index map[string]string
}

// Empty reports whether the index and its source agree.
func (d *IndexDiff) Empty() bool {
	return len(d.Source) == 0 && len(d.Index) == 0
}

// Verify compares the index with its source within tx.
func (i *Index) Verify(ctx context.Context, tx Tx) (IndexDiff, error) {
	var diff IndexDiff

	source, index, err := i.buckets(tx)
	if err != nil {
		return diff, err
	}

	cursor, err := index.ForwardCursor(nil)
	if err != nil {
		return diff, err
	}
	err = WalkCursor(ctx, cursor, func(key, pk []byte) (bool, error) {
		_, err := source.Get(pk)
		if err == nil {
			return true, nil
		}
		if !IsNotFound(err) {
			return false, err
		}
		value, err := indexKeyParts(key, pk)
		if err != nil {
			return false, err
		}
		if diff.Source == nil {
			diff.Source = map[string]string{}
		}
		diff.Source[string(pk)] = string(value)
		return true, nil
	})
	if err != nil {
		return diff, err
	}

	err = i.walkMissing(ctx, source, index, func(key, pk []byte) {
		if diff.Index == nil {
			diff.Index = map[string]string{}
		}
		diff.Index[string(key)] = string(pk)
	})
	return diff, err
}

// walkMissing calls fn for each source row whose index entry is absent.
func (i *Index) walkMissing(ctx context.Context, source, index Bucket, fn func(key, pk []byte)) error {
	cursor, err := source.ForwardCursor(nil)
	if err != nil {
		return err
	}
	return WalkCursor(ctx, cursor, func(pk, row []byte) (bool, error) {
		value, err := i.IndexSourceOn(row)
		if err != nil || value == nil {
			return err == nil, err
		}
		key := indexKey(value, pk)
		switch _, err := index.Get(key); {
		case IsNotFound(err):
			fn(key, pk)
		case err != nil:
			return false, err
		}
		return true, nil
	})
}
