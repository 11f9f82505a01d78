package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "mail-agent/backend/internal/services"

// Metrics holds the workflow counters. A nil *Metrics records nothing.
type Metrics struct {
	runs         metric.Int64Counter
	stepFailures metric.Int64Counter
	sends        metric.Int64Counter
}

// NewMetrics registers the counters on meter, or on the global provider
// when meter is nil. Instruments that fail to register are replaced by
// no-ops.
func NewMetrics(meter metric.Meter) *Metrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	return &Metrics{
		runs: counter(meter, "workflow.runs", "Workflow invocations by kind and outcome"),
		stepFailures: counter(meter, "workflow.step.failures",
			"Workflow steps that failed or degraded"),
		sends: counter(meter, "notifier.sends", "Mail deliveries by kind and outcome"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) RecordRun(ctx context.Context, kind string, ok bool) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome(ok)),
	))
}

func (m *Metrics) RecordStepFailure(ctx context.Context, kind, step string) {
	if m == nil {
		return
	}
	m.stepFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("step", step),
	))
}

func (m *Metrics) RecordSend(ctx context.Context, kind string, ok bool) {
	if m == nil {
		return
	}
	m.sends.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome(ok)),
	))
}
