// Package inmem provides a kv.Store held in memory, used by tests and by
// planners that do not need durability.
package inmem

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/influxdata/kvquery/kv"
)

var _ kv.Store = (*KVStore)(nil)

const degree = 2

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type tree = btree.BTreeG[item]

// KVStore is a kv.Store of btrees keyed by bucket name.
//
// Update transactions work on lazy copies of the trees and publish them only
// when the transaction function succeeds, so a failed batch leaves no trace.
type KVStore struct {
	mu      sync.RWMutex
	buckets map[string]*tree
}

// NewKVStore returns an empty KVStore.
func NewKVStore() *KVStore {
	return &KVStore{
		buckets: map[string]*tree{},
	}
}

// View runs fn in a read-only transaction.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{ctx: ctx, trees: s.buckets})
}

// Update runs fn in a writable transaction. Nothing fn wrote is visible to
// later transactions if it returns an error.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trees := make(map[string]*tree, len(s.buckets))
	for name, t := range s.buckets {
		trees[name] = t.Clone()
	}
	if err := fn(&Tx{ctx: ctx, trees: trees, writable: true}); err != nil {
		return err
	}
	s.buckets = trees
	return nil
}

// Flush removes every key, keeping the buckets.
func (s *KVStore) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.buckets {
		s.buckets[name] = btree.NewG(degree, less)
	}
}

// Tx is a transaction over the trees of a KVStore.
type Tx struct {
	ctx      context.Context
	trees    map[string]*tree
	writable bool
}

// Context returns the context of the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext replaces the context of the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// Bucket returns the bucket named b, creating it in writable transactions.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	tr, ok := t.trees[string(b)]
	if !ok {
		if !t.writable {
			return nil, kv.ErrTxNotWritable
		}
		tr = btree.NewG(degree, less)
		t.trees[string(b)] = tr
	}
	return &Bucket{tree: tr, writable: t.writable}, nil
}

// Bucket is a btree seen through one transaction.
type Bucket struct {
	tree     *tree
	writable bool
}

// Get returns the value stored under key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	i, ok := b.tree.Get(item{key: key})
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return i.value, nil
}

// Put stores a copy of key and value.
func (b *Bucket) Put(key, value []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	b.tree.ReplaceOrInsert(item{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bucket) Delete(key []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	b.tree.Delete(item{key: key})
	return nil
}

// ForwardCursor returns a cursor over the bucket starting at seek. Each call
// to Next descends the tree again from the last key returned, so the cursor
// never materializes the bucket and tolerates writes between calls.
func (b *Bucket) ForwardCursor(seek []byte, opts ...kv.CursorOption) (kv.ForwardCursor, error) {
	config := kv.NewCursorConfig(opts...)
	return &forwardCursor{
		tree:   b.tree,
		config: config,
		next:   config.StartKey(seek),
	}, nil
}

type forwardCursor struct {
	tree   *tree
	config kv.CursorConfig

	next    []byte
	last    []byte
	started bool
	done    bool
}

func (c *forwardCursor) Next() (k, v []byte) {
	if c.done {
		return nil, nil
	}

	var (
		found item
		ok    bool
	)
	pivot, skip := c.next, c.started
	if c.started {
		pivot = c.last
	}
	c.started = true
	c.tree.AscendGreaterOrEqual(item{key: pivot}, func(i item) bool {
		if skip && bytes.Equal(i.key, pivot) {
			return true
		}
		found, ok = i, true
		return false
	})

	if !ok || c.config.Exhausted(found.key) {
		c.done = true
		return nil, nil
	}
	c.last = found.key
	return found.key, found.value
}

func (c *forwardCursor) Err() error {
	return nil
}

func (c *forwardCursor) Close() error {
	c.done = true
	return nil
}
