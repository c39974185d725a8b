package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Subscribe("outcome", func(e Event) error {
		got = e
		return nil
	})

	err := d.Publish(Event{Topic: "outcome", Payload: 42})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Payload != 42 {
		t.Errorf("expected payload 42, got %v", got.Payload)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestDispatcher_FanOut(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var order []string
	d.Subscribe("outcome", func(e Event) error {
		order = append(order, "stats")
		return nil
	})
	d.Subscribe("outcome", func(e Event) error {
		order = append(order, "reward")
		return fmt.Errorf("reward failed")
	})
	d.Subscribe("outcome", func(e Event) error {
		order = append(order, "storage")
		return nil
	})

	err := d.Publish(Event{Topic: "outcome"})

	if err == nil {
		t.Error("expected joined error from failing subscriber")
	}
	if len(order) != 3 || order[0] != "stats" || order[2] != "storage" {
		t.Errorf("unexpected call order %v", order)
	}
}

func TestDispatcher_UnknownTopic(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Publish(Event{Topic: "unknown"})

	if err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Subscribe("snapshot", func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Publish(Event{Topic: "snapshot"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe("snapshot", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))

	d.Publish(Event{Topic: "snapshot"}) // being processed
	<-started
	d.Publish(Event{Topic: "snapshot"}) // queued
	d.Publish(Event{Topic: "snapshot"}) // queued

	// This should be dropped
	err := d.Publish(Event{Topic: "snapshot"})

	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe("outcome", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Publish(Event{Topic: "outcome"})
	<-started
	// Second event fills the queue
	d.Publish(Event{Topic: "outcome"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Publish(Event{Topic: "outcome"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("publish should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - publish is blocking
	}

	close(block)
	<-done
}

func TestDispatcher_CloseDrains(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Subscribe("outcome", func(e Event) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(10), Blocking())

	for i := 0; i < 5; i++ {
		d.Publish(Event{Topic: "outcome"})
	}
	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected 5 processed after Close, got %d", processed.Load())
	}
	if err := d.Publish(Event{Topic: "outcome"}); err == nil {
		t.Error("expected error after Close")
	}
	d.Close()
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("episode", func(e Event) error {
		return nil
	}, Logged(), Named("stats"))

	d.Publish(Event{Topic: "episode"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
	if !strings.Contains(logger.messages[0], "stats") {
		t.Errorf("expected subscriber name in log, got %q", logger.messages[0])
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("episode", func(e Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Publish(Event{Topic: "episode"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasSubscribers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Subscribe("outcome", func(e Event) error { return nil })

	if !d.HasSubscribers("outcome") {
		t.Error("expected subscriber to exist")
	}

	if d.HasSubscribers("snapshot") {
		t.Error("expected no subscriber")
	}
}
