package telemetry

import (
	"context"
	"runtime/debug"

	"go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Provider provides [Recorder] instances scoped to particular subsystems.
//
// Any provider that is nil is replaced with a no-op implementation, so the
// zero-value is a fully disabled provider.
type Provider struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider
}

// Recorder records traces, metrics and logs for a particular subsystem.
type Recorder struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger log.Logger

	errorCount Instrument
}

// Recorder returns a new [Recorder] instance.
//
// pkg is the path to the Go package that is performing the instrumentation.
// If it is an internal package, use the package path of the public parent
// package instead.
func (p Provider) Recorder(pkg string, attrs ...Attr) *Recorder {
	tp := p.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	mp := p.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}

	lp := p.LoggerProvider
	if lp == nil {
		lp = lognoop.NewLoggerProvider()
	}

	r := &Recorder{
		tracer: tp.Tracer(
			pkg,
			tracerVersion,
			trace.WithInstrumentationAttributes(asAttrKeyValues(attrs)...),
		),
		meter: mp.Meter(
			pkg,
			meterVersion,
			metric.WithInstrumentationAttributes(asAttrKeyValues(attrs)...),
		),
		logger: lp.Logger(
			pkg,
			logVersion,
			log.WithInstrumentationAttributes(asAttrKeyValues(attrs)...),
		),
	}

	r.errorCount = r.Counter("errors", "{error}", "The number of errors that have occurred.")

	return r
}

// StartSpan starts a new span with the given name and attributes.
func (r *Recorder) StartSpan(
	ctx context.Context,
	name string,
	attrs ...Attr,
) (context.Context, trace.Span) {
	return r.tracer.Start(
		ctx,
		name,
		trace.WithAttributes(asAttrKeyValues(attrs)...),
	)
}

// Instrument records an int64 measurement against a named instrument.
type Instrument func(ctx context.Context, v int64)

// Counter returns an [Instrument] that records to a monotonic counter.
func (r *Recorder) Counter(name, unit, desc string) Instrument {
	c, err := r.meter.Int64Counter(
		name,
		metric.WithUnit(unit),
		metric.WithDescription(desc),
	)
	if err != nil {
		return func(context.Context, int64) {}
	}

	return func(ctx context.Context, v int64) {
		c.Add(ctx, v)
	}
}

// UpDownCounter returns an [Instrument] that records to a non-monotonic
// counter.
func (r *Recorder) UpDownCounter(name, unit, desc string) Instrument {
	c, err := r.meter.Int64UpDownCounter(
		name,
		metric.WithUnit(unit),
		metric.WithDescription(desc),
	)
	if err != nil {
		return func(context.Context, int64) {}
	}

	return func(ctx context.Context, v int64) {
		c.Add(ctx, v)
	}
}

var (
	// tracerVersion is a TracerOption that sets the instrumentation version
	// to the current version of the module.
	tracerVersion trace.TracerOption

	// meterVersion is a MeterOption that sets the instrumentation version to
	// the current version of the module.
	meterVersion metric.MeterOption

	// logVersion is a LoggerOption that sets the instrumentation version to
	// the current version of the module.
	logVersion log.LoggerOption
)

func init() {
	const modulePath = "github.com/skinsch/dbproxy"
	version := "unknown"

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == modulePath {
				version = dep.Version
				break
			}
		}
	}

	tracerVersion = trace.WithInstrumentationVersion(version)
	meterVersion = metric.WithInstrumentationVersion(version)
	logVersion = log.WithInstrumentationVersion(version)
}
