// Package observe wires OpenTelemetry into the bot: metric instruments for
// the translation pipeline, span helpers, trace-aware loggers and HTTP
// middleware.
//
// Instruments live on [Metrics]. [InitProvider] registers a Prometheus
// exporter as the global meter provider so the usual /metrics scrape keeps
// working. Tests should build their own [Metrics] via [NewMetrics] with a
// manual reader instead of touching [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every lingobridge metric.
const meterName = "github.com/MrWong99/lingobridge"

// Translation sources recorded by [Metrics.RecordTranslation].
const (
	SourceMemoryExact = "memory_exact"
	SourceMemoryFuzzy = "memory_fuzzy"
	SourceOracle      = "oracle"
	SourcePassthrough = "passthrough"
)

// Metrics holds the OpenTelemetry instruments used across the bot. All
// fields are safe for concurrent use.
type Metrics struct {
	// Events counts inbound Slack events. Attributes: type, outcome.
	Events metric.Int64Counter

	// Translations counts produced translations. Attribute: source.
	Translations metric.Int64Counter

	// OracleDuration tracks language model latency. Attributes: op, status.
	OracleDuration metric.Float64Histogram

	// DeliveryResults counts delivery attempts. Attributes: mode, result.
	DeliveryResults metric.Int64Counter

	// ProviderRequests counts LLM provider calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts LLM provider failures. Attributes: provider,
	// kind.
	ProviderErrors metric.Int64Counter

	// InFlight tracks events currently being processed.
	InFlight metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP handler latency. Attributes: method,
	// path.
	HTTPRequestDuration metric.Float64Histogram
}

// oracleBuckets are histogram boundaries in seconds sized for chat
// completion round trips.
var oracleBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Events, err = m.Int64Counter("lingobridge.events",
		metric.WithDescription("Inbound Slack events by type and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Translations, err = m.Int64Counter("lingobridge.translations",
		metric.WithDescription("Translations produced by source."),
	); err != nil {
		return nil, err
	}
	if met.OracleDuration, err = m.Float64Histogram("lingobridge.oracle.duration",
		metric.WithDescription("Latency of language detection and translation calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(oracleBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DeliveryResults, err = m.Int64Counter("lingobridge.delivery.results",
		metric.WithDescription("Translation delivery attempts by mode and result."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("lingobridge.provider.requests",
		metric.WithDescription("LLM provider requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lingobridge.provider.errors",
		metric.WithDescription("LLM provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("lingobridge.events.in_flight",
		metric.WithDescription("Events currently being handled."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lingobridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] built on the global meter
// provider. It panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvent counts one inbound event.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, outcome string) {
	m.Events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

// RecordTranslation counts one translation by where it came from.
func (m *Metrics) RecordTranslation(ctx context.Context, source string) {
	m.Translations.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordOracle records the latency of one oracle call.
func (m *Metrics) RecordOracle(ctx context.Context, op, status string, seconds float64) {
	m.OracleDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
}

// RecordDelivery counts one delivery attempt.
func (m *Metrics) RecordDelivery(ctx context.Context, mode, result string) {
	m.DeliveryResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("result", result),
	))
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
