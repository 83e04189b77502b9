// Package testing records the spans of a test in memory.
package testing

import (
	stdtesting "testing"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
)

// SetupInMemoryTracing installs a global Jaeger tracer that keeps every
// finished span in the returned reporter. The previous global tracer is
// restored when t completes.
func SetupInMemoryTracing(t stdtesting.TB) *jaeger.InMemoryReporter {
	reporter := jaeger.NewInMemoryReporter()
	tracer, closer := jaeger.NewTracer(t.Name(), jaeger.NewConstSampler(true), reporter)

	old := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() {
		_ = closer.Close()
		opentracing.SetGlobalTracer(old)
	})
	return reporter
}

// OperationNames returns the operation names of the spans in r in the
// order they finished.
func OperationNames(r *jaeger.InMemoryReporter) []string {
	spans := r.GetSpans()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		if js, ok := s.(*jaeger.Span); ok {
			names = append(names, js.OperationName())
		}
	}
	return names
}
