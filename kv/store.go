package kv

import (
	"bytes"
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is the error returned when the key requested is not found.
	ErrKeyNotFound = errors.New("key not found")
	// ErrTxNotWritable is the error returned when an mutable operation is called during
	// a non-writable transaction.
	ErrTxNotWritable = errors.New("transaction is not writable")
)

// IsNotFound returns a boolean indicating whether the error is known to report that a key was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Store is an interface for a generic key value store. It is modeled after
// the boltdb database struct.
type Store interface {
	// View opens up a transaction that will not write to any data. Implementing interfaces
	// should take care to ensure that all view transactions do not mutate any data.
	View(context.Context, func(Tx) error) error
	// Update opens up a transaction that will mutate data.
	Update(context.Context, func(Tx) error) error
}

// Tx is a transaction in the store.
type Tx interface {
	// Bucket returns the bucket named b. Writable transactions create it
	// when it does not exist yet.
	Bucket(b []byte) (Bucket, error)
	Context() context.Context
	WithContext(ctx context.Context)
}

// Bucket is the abstraction used to perform get/put/delete/get-many operations
// in a key value store.
type Bucket interface {
	Get(key []byte) ([]byte, error)
	// ForwardCursor returns a cursor positioned at the first key greater
	// than or equal to seek, moving in ascending key order.
	ForwardCursor(seek []byte, opts ...CursorOption) (ForwardCursor, error)
	// Put should error if the transaction it was called in is not writable.
	Put(key, value []byte) error
	// Delete should error if the transaction it was called in is not writable.
	Delete(key []byte) error
}

// ForwardCursor is an abstraction for interacting/ranging through data in one direction.
type ForwardCursor interface {
	// Next moves the cursor to the next key in the bucket. A nil key means
	// the cursor is exhausted.
	Next() (k, v []byte)
	// Err returns non-nil if an error occurred during cursor iteration.
	// This should always be checked after Next returns a nil key/value.
	Err() error
	// Close is reponsible for freeing any resources created by the cursor.
	Close() error
}

// CursorConfig holds the bounds of a forward cursor.
type CursorConfig struct {
	Prefix []byte
	// Stop is an inclusive upper bound on returned keys. Nil means none.
	Stop []byte
}

// NewCursorConfig constructs and configures a CursorConfig used to configure
// a forward cursor.
func NewCursorConfig(opts ...CursorOption) CursorConfig {
	conf := CursorConfig{}
	for _, opt := range opts {
		opt(&conf)
	}
	return conf
}

// StartKey returns where a cursor asked to seek to seek should begin.
func (c CursorConfig) StartKey(seek []byte) []byte {
	if c.Prefix != nil && bytes.Compare(seek, c.Prefix) < 0 {
		return c.Prefix
	}
	return seek
}

// Exhausted reports whether k, and so every key after it, lies outside the
// configured prefix or past the stop key.
func (c CursorConfig) Exhausted(k []byte) bool {
	if c.Prefix != nil && !bytes.HasPrefix(k, c.Prefix) {
		return true
	}
	return c.Stop != nil && bytes.Compare(k, c.Stop) > 0
}

// CursorOption is a functional option for configuring a forward cursor
type CursorOption func(*CursorConfig)

// WithCursorPrefix configures the forward cursor to retrieve keys
// with a particular prefix. This implies the cursor will start and end
// at a specific location based on the prefix [prefix, prefix + 1).
//
// The value of the seek bytes must be prefixed with the provided
// prefix, otherwise the cursor will return no results.
func WithCursorPrefix(prefix []byte) CursorOption {
	return func(c *CursorConfig) {
		c.Prefix = prefix
	}
}

// WithCursorStop stops the cursor after the last key less than or equal
// to stop.
func WithCursorStop(stop []byte) CursorOption {
	return func(c *CursorConfig) {
		c.Stop = stop
	}
}

// VisitFunc is called for each k, v pair visited by a walk. Returning false
// stops the walk.
type VisitFunc func(k, v []byte) (bool, error)

// WalkCursor consumes the forward cursor calling visit for each k/v pair found
// until visit returns false or an error.
func WalkCursor(ctx context.Context, cursor ForwardCursor, visit VisitFunc) (err error) {
	defer func() {
		if cerr := cursor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		if cont, err := visit(k, v); !cont || err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return cursor.Err()
}
