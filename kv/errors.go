package kv

import (
	"fmt"

	"github.com/influxdata/kvquery/kit/platform/errors"
)

// UnexpectedIndexError is used when the error comes from an internal system.
func UnexpectedIndexError(err error) *errors.Error {
	return &errors.Error{
		Code: errors.EInternal,
		Msg:  fmt.Sprintf("unexpected error retrieving index; Err: %v", err),
		Op:   "kv/index",
		Err:  err,
	}
}

// ErrColumnFamilyNotFound is used when a column family was never registered
// with the service.
func ErrColumnFamilyNotFound(name string) *errors.Error {
	return &errors.Error{
		Code: errors.ENotFound,
		Msg:  fmt.Sprintf("column family %q not found", name),
	}
}

// ErrColumnNotIndexed is used when an index scan names a column without a
// secondary index.
func ErrColumnNotIndexed(cf, column string) *errors.Error {
	return &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("column %q of %q has no secondary index", column, cf),
	}
}

type corruptDocumentError struct {
	err error
}

func (e *corruptDocumentError) Error() string {
	return "corrupt row document: " + e.err.Error()
}

func (e *corruptDocumentError) Unwrap() error { return e.err }

// ErrCorruptDocument wraps a row that could not be decoded.
func ErrCorruptDocument(key []byte, err error) *errors.Error {
	return &errors.Error{
		Code: errors.EInternal,
		Msg:  fmt.Sprintf("unable to decode row %q", key),
		Err:  err,
	}
}
