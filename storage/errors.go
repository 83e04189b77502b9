package storage

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"syscall"

	bolt "go.etcd.io/bbolt"

	"github.com/influxdata/kvquery/kit/platform/errors"
)

// ErrTransport marks a failure of the connection to the store rather than
// of the request itself. Sessions wrap it to request a reconnect.
var ErrTransport = stderrors.New("store transport failure")

// IsTransport reports whether err means the session to the store is broken
// and a fresh session may succeed where it failed.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if stderrors.Is(err, ErrTransport) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, io.ErrClosedPipe) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, bolt.ErrDatabaseNotOpen) {
		return true
	}
	var nerr net.Error
	return stderrors.As(err, &nerr)
}

func connectionError(op string, err error) error {
	return errors.NewError(
		errors.WithErrorCode(errors.EStoreConnection),
		errors.WithErrorOp(op),
		errors.WithErrorMsg("store unavailable after reconnect"),
		errors.WithErrorErr(err),
	)
}

func accessError(op string, err error) error {
	return errors.NewError(
		errors.WithErrorCode(errors.EStoreAccess),
		errors.WithErrorOp(op),
		errors.WithErrorMsg("store call failed"),
		errors.WithErrorErr(err),
	)
}
