// Package telemetry provides hierarchical timing of operations.
//
// Collectors travel through context so instrumentation never changes a
// function signature: code calls telemetry.FromContext(ctx).Start(...)
// and gets a real timer when a collector was installed, or a free no-op
// otherwise.
//
// Example:
//
//	collector := telemetry.NewTimingCollector()
//	ctx := telemetry.WithCollector(context.Background(), collector)
//
//	timer := telemetry.FromContext(ctx).Start("submit")
//	child := timer.Child("rules.validate")
//	// ... work ...
//	child.End()
//	timer.End()
//
//	collector.Report(os.Stderr)
package telemetry

import (
	"context"
	"io"
)

// Collector gathers operation timings.
type Collector interface {
	// Start begins timing a named operation. End the returned timer
	// when the operation completes.
	Start(name string) Timer

	// Report writes the collected timings to w.
	Report(w io.Writer)
}

// Timer times one operation and supports nesting via Child.
type Timer interface {
	// End stops the timer and records its duration.
	End()

	// Child starts a nested timer under this one.
	Child(name string) Timer
}

// contextKey is unexported to keep the context namespace private.
type contextKey struct{}

var collectorKey = contextKey{}

// WithCollector installs a collector into the context.
func WithCollector(ctx context.Context, c Collector) context.Context {
	return context.WithValue(ctx, collectorKey, c)
}

// FromContext returns the context's collector, or a no-op collector when
// none was installed.
func FromContext(ctx context.Context) Collector {
	if c, ok := ctx.Value(collectorKey).(Collector); ok {
		return c
	}
	return noopCollector{}
}

type noopCollector struct{}

func (noopCollector) Start(string) Timer { return noopTimer{} }
func (noopCollector) Report(io.Writer)   {}

type noopTimer struct{}

func (noopTimer) End()               {}
func (noopTimer) Child(string) Timer { return noopTimer{} }
