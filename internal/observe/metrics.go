// Package observe provides application-wide observability primitives for the
// Tala core: OpenTelemetry metrics, tracing helpers, and the SDK provider
// setup that bridges metrics to Prometheus.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Tala metrics.
const meterName = "github.com/sinagtala/tala"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// GenerationDuration tracks end-to-end text-generation latency per turn.
	GenerationDuration metric.Float64Histogram

	// Turns counts completed conversational turns. Use with attributes:
	//   attribute.String("mode", "stream"|"blocking"), attribute.String("status", ...)
	Turns metric.Int64Counter

	// TurnChunks counts relayed stream fragments.
	TurnChunks metric.Int64Counter

	// StoreErrors counts persistence failures by operation.
	StoreErrors metric.Int64Counter

	// SummaryRefreshes counts user-summary recomputations by status.
	SummaryRefreshes metric.Int64Counter

	// ActiveTurns tracks the number of turns currently in flight.
	ActiveTurns metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// local and remote model inference.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.GenerationDuration, err = m.Float64Histogram("tala.generation.duration",
		metric.WithDescription("Latency of a single text-generation call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("tala.turns",
		metric.WithDescription("Total conversational turns by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.TurnChunks, err = m.Int64Counter("tala.turn.chunks",
		metric.WithDescription("Total stream fragments relayed to callers."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("tala.store.errors",
		metric.WithDescription("Total persistence failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.SummaryRefreshes, err = m.Int64Counter("tala.summary.refreshes",
		metric.WithDescription("Total user-summary recomputations by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveTurns, err = m.Int64UpDownCounter("tala.active_turns",
		metric.WithDescription("Number of turns currently in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTurn records a completed turn with the standard attribute set.
func (m *Metrics) RecordTurn(ctx context.Context, mode, status string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("status", status),
		),
	)
}

// RecordStoreError records a persistence failure for the given operation.
func (m *Metrics) RecordStoreError(ctx context.Context, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
