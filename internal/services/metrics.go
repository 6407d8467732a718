package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const metricNamespace = "github.com/workshop-planner/api/internal/services"

// meterOrGlobal returns m, or the global provider's meter for this package.
func meterOrGlobal(m metric.Meter) metric.Meter {
	if m != nil {
		return m
	}
	return otel.GetMeterProvider().Meter(metricNamespace)
}

// counter registers an Int64Counter, falling back to a no-op instrument on registration failure.
func counter(m metric.Meter, name, description string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter(metricNamespace).Int64Counter(name)
	}
	return c
}

func addCount(ctx context.Context, c metric.Int64Counter, n int, attrs ...attribute.KeyValue) {
	if c == nil || n <= 0 {
		return
	}
	c.Add(ctx, int64(n), metric.WithAttributes(attrs...))
}
