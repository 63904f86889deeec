package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeSuccess     = "success"
	outcomeEmpty       = "empty"
	outcomeFailed      = "failed"
	outcomeTimeout     = "timeout"
	outcomeUnavailable = "unavailable"
)

// Metrics are the orchestrator's OpenTelemetry instruments.
type Metrics struct {
	attempts  metric.Int64Counter
	fallbacks metric.Int64Counter
	latency   metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) *Metrics {
	attempts, _ := meter.Int64Counter("provider_attempts_total",
		metric.WithDescription("Provider calls by capability, provider and outcome"))
	fallbacks, _ := meter.Int64Counter("provider_fallbacks_total",
		metric.WithDescription("Requests answered from the static table or the estimator"))
	latency, _ := meter.Float64Histogram("provider_call_duration_seconds",
		metric.WithDescription("Duration of individual provider calls in seconds"),
		metric.WithUnit("s"))

	return &Metrics{
		attempts:  attempts,
		fallbacks: fallbacks,
		latency:   latency,
	}
}

func (m *Metrics) attempt(ctx context.Context, capability, provider, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.attempts.Add(ctx, 1, attrs)
	if outcome != outcomeUnavailable {
		m.latency.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func (m *Metrics) fallback(ctx context.Context, capability string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("capability", capability)))
}

func failureOutcome(err error) string {
	if IsTimeout(err) {
		return outcomeTimeout
	}
	return outcomeFailed
}
