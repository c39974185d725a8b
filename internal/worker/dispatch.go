package worker

import (
	"fmt"

	"github.com/OCAP2/evacsim/internal/dispatcher"
	"github.com/OCAP2/evacsim/internal/sim"
	"github.com/OCAP2/evacsim/pkg/core"
)

// RegisterHandlers subscribes the backend, and the metrics sink when set, to the simulation
// topics.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	size := m.deps.BufferSize

	// Outcomes and episodes must not be lost - block the sim when storage lags
	d.Subscribe(sim.TopicOutcome, m.handleOutcome,
		dispatcher.Named("storage.outcome"), dispatcher.Buffered(size), dispatcher.Blocking(), dispatcher.Logged())
	d.Subscribe(sim.TopicEpisode, m.handleEpisode,
		dispatcher.Named("storage.episode"), dispatcher.Buffered(size), dispatcher.Blocking(), dispatcher.Logged())

	// Samples are droppable
	d.Subscribe(sim.TopicSnapshot, m.handleSnapshot,
		dispatcher.Named("storage.snapshot"), dispatcher.Buffered(size), dispatcher.Logged())

	if m.deps.Metrics == nil {
		return
	}
	d.Subscribe(sim.TopicOutcome, m.metricsOutcome, dispatcher.Named("metrics.outcome"), dispatcher.Buffered(size/10+1))
	d.Subscribe(sim.TopicSnapshot, m.metricsSnapshot, dispatcher.Named("metrics.snapshot"), dispatcher.Buffered(size/10+1))
	d.Subscribe(sim.TopicEpisode, m.metricsEpisode, dispatcher.Named("metrics.episode"), dispatcher.Buffered(100))
}

func (m *Manager) handleOutcome(e dispatcher.Event) error {
	o, err := outcomeOf(e)
	if err != nil {
		return err
	}
	if err := m.backend.RecordOutcome(o); err != nil {
		m.failures.Add(1)
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	m.outcomes.Add(1)
	return nil
}

func (m *Manager) handleSnapshot(e dispatcher.Event) error {
	s, err := snapshotOf(e)
	if err != nil {
		return err
	}
	m.alive.Store(int64(s.Alive))
	if err := m.backend.RecordSnapshot(s); err != nil {
		m.failures.Add(1)
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	m.snapshots.Add(1)
	return nil
}

func (m *Manager) handleEpisode(e dispatcher.Event) error {
	ep, err := episodeOf(e)
	if err != nil {
		return err
	}
	if err := m.backend.RecordEpisode(ep); err != nil {
		m.failures.Add(1)
		return fmt.Errorf("failed to record episode: %w", err)
	}
	m.episodes.Add(1)
	m.deps.Logger.Info("Episode stored", "episode", ep.Index, "escaped", ep.Escaped, "dead", ep.Dead)
	return nil
}

func (m *Manager) metricsOutcome(e dispatcher.Event) error {
	o, err := outcomeOf(e)
	if err != nil {
		return err
	}
	return m.deps.Metrics.WriteOutcome(o)
}

func (m *Manager) metricsSnapshot(e dispatcher.Event) error {
	s, err := snapshotOf(e)
	if err != nil {
		return err
	}
	return m.deps.Metrics.WriteSnapshot(s)
}

func (m *Manager) metricsEpisode(e dispatcher.Event) error {
	ep, err := episodeOf(e)
	if err != nil {
		return err
	}
	return m.deps.Metrics.WriteEpisode(ep)
}

// The sim publishes values. Pointers are accepted for replayed events.

func outcomeOf(e dispatcher.Event) (*core.Outcome, error) {
	switch p := e.Payload.(type) {
	case core.Outcome:
		return &p, nil
	case *core.Outcome:
		return p, nil
	}
	return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
}

func snapshotOf(e dispatcher.Event) (*core.PopulationSnapshot, error) {
	switch p := e.Payload.(type) {
	case core.PopulationSnapshot:
		return &p, nil
	case *core.PopulationSnapshot:
		return p, nil
	}
	return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
}

func episodeOf(e dispatcher.Event) (*core.EpisodeSummary, error) {
	switch p := e.Payload.(type) {
	case core.EpisodeSummary:
		return &p, nil
	case *core.EpisodeSummary:
		return p, nil
	}
	return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
}
