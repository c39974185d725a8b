package sim

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/evacsim/internal/sim"

type metrics struct {
	outcomes  metric.Int64Counter
	episodes  metric.Int64Counter
	overrides metric.Int64Counter
	stepTime  metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)

	out.outcomes, err = m.Int64Counter(
		"sim.outcomes",
		metric.WithDescription("Occupants that died or escaped"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcome counter: %w", err)
	}

	out.episodes, err = m.Int64Counter(
		"sim.episodes",
		metric.WithDescription("Finished episodes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating episode counter: %w", err)
	}

	out.overrides, err = m.Int64Counter(
		"sim.decision.overrides",
		metric.WithDescription("Behavior states set by the decision provider"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating override counter: %w", err)
	}

	out.stepTime, err = m.Float64Histogram(
		"sim.step.duration",
		metric.WithDescription("Wall time of one simulation step"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step histogram: %w", err)
	}
	return &out, nil
}

func (m *metrics) outcome(ctx context.Context, kind string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
