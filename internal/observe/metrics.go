// Package observe records recognizer metrics through OpenTelemetry and
// exposes them for Prometheus scraping.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider] so readers never see another test's data.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all hark metrics.
const meterName = "github.com/rbright/hark"

// Metrics holds the recognizer instruments. The OTel types handle their own
// synchronisation.
type Metrics struct {
	// Results counts forwarded recognition results.
	Results metric.Int64Counter

	// Errors counts reported recognizer errors. Attributes:
	//   attribute.String("code", ...), attribute.Bool("timeout", ...)
	Errors metric.Int64Counter

	// Recreations counts handle replacements after a speech timeout.
	Recreations metric.Int64Counter

	// DroppedEvents counts queued engine events evicted by a full queue.
	DroppedEvents metric.Int64Counter

	// QueueDepth tracks events waiting for the engine to poll.
	QueueDepth metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Results, err = m.Int64Counter("hark.recognizer.results",
		metric.WithDescription("Recognition results forwarded to the engine."),
	); err != nil {
		return nil, err
	}
	if met.Errors, err = m.Int64Counter("hark.recognizer.errors",
		metric.WithDescription("Recognizer errors reported to the engine."),
	); err != nil {
		return nil, err
	}
	if met.Recreations, err = m.Int64Counter("hark.recognizer.recreations",
		metric.WithDescription("Recognizer handles replaced after a speech timeout."),
	); err != nil {
		return nil, err
	}
	if met.DroppedEvents, err = m.Int64Counter("hark.events.dropped",
		metric.WithDescription("Engine events evicted because the queue was full."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("hark.engine.queue_depth",
		metric.WithDescription("Engine events waiting to be polled."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns instruments that record nothing.
func Discard() *Metrics {
	met, _ := NewMetrics(noop.NewMeterProvider())
	return met
}

// RecordResult counts one forwarded result.
func (m *Metrics) RecordResult(ctx context.Context) {
	m.Results.Add(ctx, 1)
}

// RecordError counts one recognizer error by code name.
func (m *Metrics) RecordError(ctx context.Context, code string, timeout bool) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.Bool("timeout", timeout),
	))
}

func (m *Metrics) RecordRecreation(ctx context.Context) {
	m.Recreations.Add(ctx, 1)
}

func (m *Metrics) RecordDropped(ctx context.Context) {
	m.DroppedEvents.Add(ctx, 1)
}

// AddQueueDepth moves the queue gauge by delta.
func (m *Metrics) AddQueueDepth(ctx context.Context, delta int64) {
	if delta == 0 {
		return
	}
	m.QueueDepth.Add(ctx, delta)
}
