package errors

import (
	"encoding/json"
	"errors"
)

// Error codes used across kvquery. Callers switch on these through ErrorCode
// rather than comparing error values.
const (
	EInternal   = "internal error"
	ENotFound   = "not found"
	EInvalid    = "invalid"
	EConflict   = "conflict"
	EEmptyValue = "empty value"

	// EInvalidPredicateOp is returned when a filter uses an operator the
	// engine does not know, or when a fold is attempted under a parent that
	// is neither AND nor OR.
	EInvalidPredicateOp = "invalid predicate op"
	// EInvalidSortSpec is returned for an empty or malformed ordering.
	EInvalidSortSpec = "invalid sort spec"
	// EStoreConnection is a transport failure that survived the single
	// reconnect and retry.
	EStoreConnection = "store connection"
	// EStoreAccess is any other failure reported by a store operation.
	EStoreAccess = "store access"
	// EEmptyQuery is returned when a query is executed before a predicate
	// tree was attached to it.
	EEmptyQuery = "empty query"
)

// Error carries a Code for programmatic handling, a Msg for operators and
// an Op naming where it happened. Err links it to its cause; the chain reads
// as a logical stack trace.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// NewError returns an instance of an error.
func NewError(options ...func(*Error)) *Error {
	err := &Error{}
	for _, o := range options {
		o(err)
	}

	return err
}

// WithErrorErr sets the err on the error.
func WithErrorErr(err error) func(*Error) {
	return func(e *Error) {
		e.Err = err
	}
}

// WithErrorCode sets the code on the error.
func WithErrorCode(code string) func(*Error) {
	return func(e *Error) {
		e.Code = code
	}
}

// WithErrorMsg sets the message on the error.
func WithErrorMsg(msg string) func(*Error) {
	return func(e *Error) {
		e.Msg = msg
	}
}

// WithErrorOp sets the op on the error.
func WithErrorOp(op string) func(*Error) {
	return func(e *Error) {
		e.Op = op
	}
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return "<" + e.Code + ">"
}

// Unwrap returns the wrapped error so errors.Is and errors.As see through it.
func (e *Error) Unwrap() error {
	return e.Err
}

const internalMessage = "An internal error has occurred."

// first walks the chain of err and returns the first non-empty field of an
// *Error in it.
func first(err error, field func(*Error) string) (string, bool) {
	var e *Error
	for errors.As(err, &e) && e != nil {
		if v := field(e); v != "" {
			return v, true
		}
		err = e.Err
	}
	return "", false
}

// ErrorCode returns the first code found in the chain of err, or EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := first(err, func(e *Error) string { return e.Code }); ok {
		return code
	}
	return EInternal
}

// ErrorOp returns the first op found in the chain of err.
func ErrorOp(err error) string {
	op, _ := first(err, func(e *Error) string { return e.Op })
	return op
}

// ErrorMessage returns the first human-readable message found in the chain
// of err, or a generic one.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := first(err, func(e *Error) string { return e.Msg }); ok {
		return msg
	}
	return internalMessage
}

type errEncode struct {
	Code string      `json:"code"`
	Msg  string      `json:"message,omitempty"`
	Op   string      `json:"op,omitempty"`
	Err  interface{} `json:"error,omitempty"`
}

// MarshalJSON encodes the chain of e. Causes that are not an *Error are
// encoded as their message.
func (e *Error) MarshalJSON() ([]byte, error) {
	ee := errEncode{
		Code: e.Code,
		Msg:  e.Msg,
		Op:   e.Op,
	}
	if e.Err != nil {
		ee.Err = e.Err.Error()
		if inner, ok := e.Err.(*Error); ok {
			ee.Err = inner
		}
	}
	return json.Marshal(ee)
}
