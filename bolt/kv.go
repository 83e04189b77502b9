// Package bolt stores column families in a boltdb file.
package bolt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/influxdata/kvquery/kit/tracing"
	"github.com/influxdata/kvquery/kv"
)

var _ kv.Store = (*KVStore)(nil)

// KVStore is a kv.Store backed by boltdb.
type KVStore struct {
	path    string
	timeout time.Duration
	noSync  bool
	db      *bolt.DB
	log     *zap.Logger
}

// NewKVStore returns a KVStore for the file named by config. It must be
// opened before use.
func NewKVStore(log *zap.Logger, config Config) *KVStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &KVStore{
		path:    config.Path,
		timeout: config.Timeout,
		noSync:  config.NoSync,
		log:     log,
	}
}

// Open opens the database file, creating it and its directory as needed.
func (s *KVStore) Open(ctx context.Context) error {
	span, _ := tracing.StartSpanFromContextWithOperationName(ctx, "bolt.Open")
	defer span.Finish()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return tracing.LogError(span, pkgerrors.Wrapf(err, "unable to create directory %s", s.path))
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return tracing.LogError(span, pkgerrors.Wrapf(err, "unable to open boltdb file %s", s.path))
	}
	db.NoSync = s.noSync
	s.db = db

	s.log.Info("Opened database", zap.String("path", s.path), zap.Bool("no_sync", s.noSync))
	return nil
}

// Close closes the database file. Transactions started afterwards fail with
// bolt.ErrDatabaseNotOpen.
func (s *KVStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return pkgerrors.Wrapf(err, "unable to close boltdb file %s", s.path)
	}
	s.log.Info("Closed database", zap.String("path", s.path))
	return nil
}

// Path returns the path of the database file.
func (s *KVStore) Path() string {
	return s.path
}

// View runs fn in a read-only bolt transaction.
func (s *KVStore) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := tracing.StartSpanFromContextWithOperationName(ctx, "bolt.View")
	defer span.Finish()

	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx, ctx: ctx})
	})
}

// Update runs fn in a writable bolt transaction, which is rolled back when
// fn fails.
func (s *KVStore) Update(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := tracing.StartSpanFromContextWithOperationName(ctx, "bolt.Update")
	defer span.Finish()

	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx, ctx: ctx})
	})
}

// translate maps bolt errors onto their kv equivalents.
func translate(err error) error {
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return kv.ErrTxNotWritable
	}
	return err
}

// Tx wraps a bolt transaction.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context of the transaction.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// WithContext replaces the context of the transaction.
func (tx *Tx) WithContext(ctx context.Context) {
	tx.ctx = ctx
}

// Bucket returns the bucket named b, creating it in writable transactions.
func (tx *Tx) Bucket(b []byte) (kv.Bucket, error) {
	if bkt := tx.tx.Bucket(b); bkt != nil {
		return &Bucket{bucket: bkt}, nil
	}
	bkt, err := tx.tx.CreateBucketIfNotExists(b)
	if err != nil {
		return nil, translate(err)
	}
	return &Bucket{bucket: bkt}, nil
}

// Bucket wraps a bolt bucket. Values it returns are only valid for the
// life of the transaction.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get returns the value stored under key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	val := b.bucket.Get(key)
	if val == nil {
		return nil, kv.ErrKeyNotFound
	}
	return val, nil
}

// Put stores value under key.
func (b *Bucket) Put(key, value []byte) error {
	return translate(b.bucket.Put(key, value))
}

// Delete removes key.
func (b *Bucket) Delete(key []byte) error {
	return translate(b.bucket.Delete(key))
}

// ForwardCursor returns a cursor moving in ascending key order from seek.
func (b *Bucket) ForwardCursor(seek []byte, opts ...kv.CursorOption) (kv.ForwardCursor, error) {
	config := kv.NewCursorConfig(opts...)
	return &Cursor{
		cursor: b.bucket.Cursor(),
		config: config,
		seek:   config.StartKey(seek),
	}, nil
}

// Cursor walks a bolt bucket.
type Cursor struct {
	cursor *bolt.Cursor
	config kv.CursorConfig

	seek    []byte
	started bool
	done    bool
}

// Next returns the next key and value, or nil once the cursor is exhausted.
func (c *Cursor) Next() (k, v []byte) {
	if c.done {
		return nil, nil
	}

	switch {
	case c.started:
		k, v = c.cursor.Next()
	case len(c.seek) == 0:
		k, v = c.cursor.First()
	default:
		k, v = c.cursor.Seek(c.seek)
	}
	c.started = true

	if k == nil || c.config.Exhausted(k) {
		c.done = true
		return nil, nil
	}
	return k, v
}

// Err returns nil; walking a bolt cursor cannot fail.
func (c *Cursor) Err() error {
	return nil
}

// Close stops the cursor. Its resources are released with the transaction.
func (c *Cursor) Close() error {
	c.done = true
	return nil
}
