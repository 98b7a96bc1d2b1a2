package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "mentoria"

// Metrics holds all chat pipeline metric instruments.
type Metrics struct {
	TurnsProcessed metric.Int64Counter
	Decisions      metric.Int64Counter
	Rollovers      metric.Int64Counter
	SearchFailures metric.Int64Counter
	ModelLatency   metric.Float64Histogram
	TokensConsumed metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsProcessed, err = meter.Int64Counter("mentoria.turns.processed",
		metric.WithDescription("Number of chat turns processed"))
	if err != nil {
		return nil, err
	}

	m.Decisions, err = meter.Int64Counter("mentoria.router.decisions",
		metric.WithDescription("Router decisions by kind"))
	if err != nil {
		return nil, err
	}

	m.Rollovers, err = meter.Int64Counter("mentoria.conversations.rollovers",
		metric.WithDescription("Number of conversation rollovers"))
	if err != nil {
		return nil, err
	}

	m.SearchFailures, err = meter.Int64Counter("mentoria.search.failures",
		metric.WithDescription("Vector search failures degraded to text responses"))
	if err != nil {
		return nil, err
	}

	m.ModelLatency, err = meter.Float64Histogram("mentoria.model.latency_seconds",
		metric.WithDescription("Model call latency in seconds"))
	if err != nil {
		return nil, err
	}

	m.TokensConsumed, err = meter.Int64Counter("mentoria.model.tokens",
		metric.WithDescription("Model tokens consumed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
