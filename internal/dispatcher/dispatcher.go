package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Event is a simulation event published on a topic.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a subscription.
type Option func(*config)

type config struct {
	name       string
	bufferSize int
	blocking   bool
	logged     bool
}

// Named labels the subscriber in logs and metrics.
func Named(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// ErrQueueFull is returned when a non-blocking subscriber drops an event.
var ErrQueueFull = errors.New("queue full")

// Dispatcher fans events out to every subscriber of their topic.
type Dispatcher struct {
	handlers map[string][]HandlerFunc
	logger   Logger

	metrics instruments

	// Track buffers for gauge callback and Close
	mu      sync.RWMutex
	buffers map[string]chan Event
	wg      sync.WaitGroup
	closed  bool
}

// New creates a Dispatcher. Metrics go to the global OTel meter provider, a no-op until one is
// installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m, err := newInstruments(d)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Subscribe adds a handler for the given topic with optional configuration. Handlers run in
// subscription order.
func (d *Dispatcher) Subscribe(topic string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := cfg.name
	if sub == "" {
		sub = fmt.Sprintf("%s#%d", topic, len(d.handlers[topic]))
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(sub, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(sub, handler)
	}

	d.handlers[topic] = append(d.handlers[topic], handler)
}

// Publish routes an event to every subscriber of its topic. Errors of synchronous subscribers
// and drops of full queues are joined.
func (d *Dispatcher) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	// held while sending so Close cannot close a buffer under a publisher
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("dispatcher closed: %s", e.Topic)
	}
	hs, ok := d.handlers[e.Topic]
	if !ok {
		return fmt.Errorf("unknown topic: %s", e.Topic)
	}

	var errs []error
	for _, h := range hs {
		if err := h(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasSubscribers returns true if anything listens on the topic.
func (d *Dispatcher) HasSubscribers(topic string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[topic]) > 0
}

// Close stops accepting events and waits until every buffered subscriber has drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// withBuffer expects d.mu to be held.
func (d *Dispatcher) withBuffer(sub string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)
	d.buffers[sub] = buffer

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			if err := h(e); err != nil {
				d.metrics.failed.Add(context.Background(), 1, subscriber(sub))
			}
			d.metrics.processed.Add(context.Background(), 1, subscriber(sub))
		}
	}()

	if blocking {
		return func(e Event) error {
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		select {
		case buffer <- e:
			return nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, subscriber(sub))
			return fmt.Errorf("%w: %s", ErrQueueFull, sub)
		}
	}
}

func (d *Dispatcher) withLogging(sub string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "subscriber", sub, "topic", e.Topic)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "subscriber", sub, "topic", e.Topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "subscriber", sub, "topic", e.Topic, "duration", time.Since(start))
		}

		return err
	}
}
