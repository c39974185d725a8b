package decision

import (
	"sync"

	"github.com/OCAP2/evacsim/pkg/core"
)

const (
	coLow  = 100
	coHigh = 1000

	yieldReward = 0.05
)

// Shape rewards a behavior state that matches the CO exposure and penalizes a mismatch.
func Shape(state core.BehaviorState, reading core.HazardReading) float64 {
	co := float64(reading.Density)
	switch {
	case co < coLow && state == core.Panicked:
		return -0.01
	case co > coHigh && state == core.Calm:
		return -0.02
	case co >= coLow && co <= coHigh && state == core.Anxious:
		return 0.005
	}
	return 0
}

// Terminal is the occupant reward for dying or escaping.
func Terminal(kind core.OutcomeKind, health float64) float64 {
	switch kind {
	case core.OutcomeDeath:
		return -1
	case core.OutcomeEscape:
		return 1 + health/100
	}
	return 0
}

// team is the rescue-side reward for an outcome.
func team(kind core.OutcomeKind) float64 {
	switch kind {
	case core.OutcomeDeath:
		return -1
	case core.OutcomeEscape:
		return 1
	}
	return 0
}

// Ledger accumulates rewards for one episode. It is fed from the simulation step and from the
// outcome dispatcher, so it locks.
type Ledger struct {
	mu       sync.Mutex
	occupant map[core.EntityID]float64
	pending  map[core.EntityID]float64
	team     float64
}

func NewLedger() *Ledger {
	return &Ledger{
		occupant: make(map[core.EntityID]float64),
		pending:  make(map[core.EntityID]float64),
	}
}

// Add credits an occupant. The amount is also kept as pending until the next decision takes it.
func (l *Ledger) Add(id core.EntityID, r float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.occupant[id] += r
	l.pending[id] += r
}

// Take returns and clears the reward gathered since the occupant's last decision.
func (l *Ledger) Take(id core.EntityID) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.pending[id]
	delete(l.pending, id)
	return r
}

// Outcome books the terminal rewards of a death or escape.
func (l *Ledger) Outcome(out core.Outcome) {
	l.Add(out.OccupantID, Terminal(out.Kind, float64(out.RemainingHealth)))
	l.mu.Lock()
	l.team += team(out.Kind)
	l.mu.Unlock()
}

// Yield books the bonus for a panicked occupant handing itself over to a rescue agent.
func (l *Ledger) Yield() {
	l.mu.Lock()
	l.team += yieldReward
	l.mu.Unlock()
}

func (l *Ledger) Occupant(id core.EntityID) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.occupant[id]
}

func (l *Ledger) Team() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.team
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.occupant)
	clear(l.pending)
	l.team = 0
}
