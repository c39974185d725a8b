package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/evacsim/internal/dispatcher"

// instruments are the per-subscriber counters of buffered handlers. Queue depth is observed
// through a callback over d.buffers.
type instruments struct {
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

func subscriber(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("subscriber", name))
}

func newInstruments(d *Dispatcher) (instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&in.processed, "dispatcher.events.processed", "Events handled by buffered subscribers"},
		{&in.failed, "dispatcher.events.failed", "Buffered events whose handler returned an error"},
		{&in.dropped, "dispatcher.events.dropped", "Events dropped because a queue was full"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return in, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	depth, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a subscriber queue"))
	if err != nil {
		return in, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for sub, buf := range d.buffers {
			o.ObserveInt64(depth, int64(len(buf)), metric.WithAttributes(attribute.String("subscriber", sub)))
		}
		return nil
	}, depth)
	if err != nil {
		return in, fmt.Errorf("registering queue callback: %w", err)
	}
	return in, nil
}
