package worker

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/evacsim/internal/storage"
	"github.com/OCAP2/evacsim/pkg/core"
)

// ErrUnexpectedPayload is returned when an event carries a payload of the wrong type.
var ErrUnexpectedPayload = fmt.Errorf("unexpected event payload")

// MetricsSink receives the same events as the storage backend, typically an InfluxDB writer.
type MetricsSink interface {
	WriteOutcome(*core.Outcome) error
	WriteSnapshot(*core.PopulationSnapshot) error
	WriteEpisode(*core.EpisodeSummary) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
	// Metrics is optional.
	Metrics MetricsSink
	// BufferSize of the async storage subscriptions. 0 uses DefaultBufferSize.
	BufferSize int
}

// DefaultBufferSize bounds the queue between the sim loop and a slow backend.
const DefaultBufferSize = 10000

// Manager routes simulation events into the storage backend and the metrics sink.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	outcomes  atomic.Uint64
	snapshots atomic.Uint64
	episodes  atomic.Uint64
	failures  atomic.Uint64
	// occupants alive in the latest snapshot
	alive atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BufferSize <= 0 {
		deps.BufferSize = DefaultBufferSize
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// QueueLengthProvider is implemented by backends that batch rows before writing.
type QueueLengthProvider interface {
	QueueLengths() map[string]int
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// QueueLengths returns the pending rows of a batching backend, nil otherwise.
func (m *Manager) QueueLengths() map[string]int {
	if p, ok := m.backend.(QueueLengthProvider); ok {
		return p.QueueLengths()
	}
	return nil
}

// Counts reports how many events reached the backend, and how many it rejected.
type Counts struct {
	Outcomes  uint64 `json:"outcomes"`
	Snapshots uint64 `json:"snapshots"`
	Episodes  uint64 `json:"episodes"`
	Failures  uint64 `json:"failures"`
}

// Alive returns the number of occupants still inside according to the last snapshot.
func (m *Manager) Alive() int {
	return int(m.alive.Load())
}

// Counts returns the running totals.
func (m *Manager) Counts() Counts {
	return Counts{
		Outcomes:  m.outcomes.Load(),
		Snapshots: m.snapshots.Load(),
		Episodes:  m.episodes.Load(),
		Failures:  m.failures.Load(),
	}
}
