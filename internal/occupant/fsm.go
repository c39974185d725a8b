package occupant

import (
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/pkg/core"
)

// FSM switches the behavior state from the panic level. A state has to be held for MinDwell
// seconds before the panic level may move the occupant out of it.
type FSM struct {
	cfg       tuning.Behavior
	state     core.BehaviorState
	stateTime float64
	hold      float64
}

func NewFSM(cfg tuning.Behavior, initial core.BehaviorState) *FSM {
	return &FSM{cfg: cfg, state: initial, stateTime: cfg.InitialDwell}
}

// TargetState maps a panic level to the state it calls for.
func TargetState(cfg tuning.Behavior, panic float64) core.BehaviorState {
	switch {
	case panic < cfg.AnxiousAt:
		return core.Calm
	case panic <= cfg.PanickedAbove:
		return core.Anxious
	default:
		return core.Panicked
	}
}

func (f *FSM) State() core.BehaviorState { return f.state }
func (f *FSM) StateTime() float64        { return f.stateTime }
func (f *FSM) Overridden() bool          { return f.hold > 0 }

// Evaluate advances the state clock by dt and switches state when the dwell time has passed
// and panic calls for a different state. While an override holds, the state is left alone.
func (f *FSM) Evaluate(panic, dt float64) bool {
	f.stateTime += dt
	if f.hold > 0 {
		f.hold -= dt
		return false
	}
	if f.stateTime < f.cfg.MinDwell {
		return false
	}
	return f.set(TargetState(f.cfg, panic))
}

// Override sets the state from an external decision and suppresses Evaluate for hold seconds.
// Dwell time is ignored.
func (f *FSM) Override(s core.BehaviorState, hold float64) bool {
	f.hold = hold
	return f.set(s)
}

// Force sets the state without holding it.
func (f *FSM) Force(s core.BehaviorState) bool {
	return f.set(s)
}

func (f *FSM) set(s core.BehaviorState) bool {
	if s == f.state {
		return false
	}
	f.state = s
	f.stateTime = 0
	return true
}
