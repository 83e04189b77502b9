package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestErrorMsg(t *testing.T) {
	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{
			name: "simple error",
			err:  &Error{Code: ENotFound},
			msg:  "<not found>",
		},
		{
			name: "with message",
			err: &Error{
				Code: ENotFound,
				Msg:  "column family hosts not found",
			},
			msg: "column family hosts not found",
		},
		{
			name: "with a third party error",
			err: &Error{
				Code: EStoreConnection,
				Op:   "storage/ScanRange",
				Err:  errors.New("database not open"),
			},
			msg: "database not open",
		},
		{
			name: "with message and error",
			err: &Error{
				Code: EStoreAccess,
				Msg:  "scan of hosts failed",
				Err:  &Error{Code: ENotFound, Msg: fmt.Sprintf("bucket %q not found", "hosts")},
			},
			msg: `scan of hosts failed: bucket "hosts" not found`,
		},
	}
	for _, c := range cases {
		if c.msg != c.err.Error() {
			t.Fatalf("%s failed, want %s, got %s", c.name, c.msg, c.err.Error())
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
		},
		{
			name: "simple error",
			err:  &Error{Msg: "simple error"},
			want: "simple error",
		},
		{
			name: "embedded error",
			err:  &Error{Err: &Error{Msg: "embedded error"}},
			want: "embedded error",
		},
		{
			name: "default error",
			err:  errors.New("s"),
			want: "An internal error has occurred.",
		},
	}
	for _, c := range cases {
		if result := ErrorMessage(c.err); c.want != result {
			t.Fatalf("%s failed, want %s, got %s", c.name, c.want, result)
		}
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
		},
		{
			name: "simple error",
			err:  &Error{Code: ENotFound},
			want: ENotFound,
		},
		{
			name: "embedded error",
			err:  &Error{Code: EStoreAccess, Err: &Error{Code: EInvalid}},
			want: EStoreAccess,
		},
		{
			name: "code of wrapped error",
			err:  &Error{Op: "planner/Query", Err: &Error{Code: EEmptyQuery}},
			want: EEmptyQuery,
		},
		{
			name: "fmt wrapped",
			err:  fmt.Errorf("fetch: %w", &Error{Code: EInvalidSortSpec}),
			want: EInvalidSortSpec,
		},
		{
			name: "multierr",
			err:  multierr.Append(&Error{Code: EStoreConnection}, errors.New("close failed")),
			want: EStoreConnection,
		},
		{
			name: "default error",
			err:  errors.New("s"),
			want: EInternal,
		},
	}
	for _, c := range cases {
		if result := ErrorCode(c.err); c.want != result {
			t.Fatalf("%s failed, want %s, got %s", c.name, c.want, result)
		}
	}
}

func TestErrorOp(t *testing.T) {
	err := NewError(
		WithErrorCode(EStoreAccess),
		WithErrorErr(NewError(WithErrorOp("storage/Write"), WithErrorMsg("batch rejected"))),
	)
	if got := ErrorOp(err); got != "storage/Write" {
		t.Fatalf("want op storage/Write, got %s", got)
	}
	if got := ErrorOp(errors.New("s")); got != "" {
		t.Fatalf("want no op, got %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Code: EStoreConnection, Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is does not see the wrapped error")
	}
}

func TestJSON(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		json string
	}{
		{
			name: "simple error",
			err:  &Error{Code: ENotFound},
			json: `{"code":"not found"}`,
		},
		{
			name: "with a third party error",
			err: &Error{
				Code: EStoreConnection,
				Op:   "storage/GetPoint",
				Err:  errors.New("database not open"),
			},
			json: `{"code":"store connection","op":"storage/GetPoint","error":"database not open"}`,
		},
		{
			name: "with an internal error",
			err: &Error{
				Code: EStoreAccess,
				Msg:  "write failed",
				Err:  &Error{Code: EEmptyValue, Op: "planner/Update"},
			},
			json: `{"code":"store access","message":"write failed","error":{"code":"empty value","op":"planner/Update"}}`,
		},
	}
	for _, c := range cases {
		result, err := json.Marshal(c.err)
		if err != nil {
			t.Fatalf("%s encode failed, want err: %v, should be nil", c.name, err)
		}
		if string(result) != c.json {
			t.Fatalf("%s failed, want %s, got %s", c.name, c.json, result)
		}
	}
}
