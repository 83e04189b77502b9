// Package tracing wraps opentracing with the span helpers used across the
// query path.
package tracing

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

// LogError marks span as failed and logs err on it. It returns err
// unchanged, so it can wrap a return value:
//
//	return nil, tracing.LogError(span, err)
func LogError(span opentracing.Span, err error) error {
	if err == nil {
		return nil
	}
	ext.Error.Set(span, true)
	span.LogFields(log.Error(err))
	return err
}

// StartSpanFromContext starts a span named after the calling function,
// e.g. "planner.(*Query).Execute", and logs the caller's file:line on it.
func StartSpanFromContext(ctx context.Context) (opentracing.Span, context.Context) {
	name, location := "unknown", "unknown"
	if pc, _, _, ok := runtime.Caller(1); ok {
		frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		name = frame.Function
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		location = fmt.Sprintf("%s:%d", frame.File, frame.Line)
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, name)
	span.LogFields(log.String("location", location))
	return span, ctx
}

// StartSpanFromContextWithOperationName starts a span named operationName,
// for call sites shared by several logical operations.
func StartSpanFromContextWithOperationName(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}
