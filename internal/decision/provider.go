package decision

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/OCAP2/evacsim/internal/api"
	"github.com/OCAP2/evacsim/pkg/core"
)

var ErrUnknownPanicMode = errors.New("unknown panic mode")

// Mode selects how behavior states are decided.
type Mode string

const (
	ModeDynamic  Mode = "dynamic"
	ModeMixed    Mode = "mixed"
	ModeCalm     Mode = "calm"
	ModeAnxious  Mode = "anxious"
	ModePanicked Mode = "panicked"
)

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeDynamic, ModeMixed, ModeCalm, ModeAnxious, ModePanicked:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPanicMode, s)
}

// Provider decides whether an occupant's behavior state is overridden. ok false means the
// occupant keeps following its own state machine.
type Provider interface {
	Decide(ctx context.Context, obs Observation) (state core.BehaviorState, ok bool, err error)
}

// Resetter is implemented by providers that keep per-episode state.
type Resetter interface {
	Reset()
}

// ForMode returns the local provider for a panic mode.
func ForMode(m Mode, seed int64) (Provider, error) {
	switch m {
	case ModeDynamic:
		return Autonomous{}, nil
	case ModeMixed:
		return NewRandom(seed), nil
	case ModeCalm:
		return Fixed{State: core.Calm}, nil
	case ModeAnxious:
		return Fixed{State: core.Anxious}, nil
	case ModePanicked:
		return Fixed{State: core.Panicked}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPanicMode, m)
}

// Autonomous never overrides.
type Autonomous struct{}

func (Autonomous) Decide(context.Context, Observation) (core.BehaviorState, bool, error) {
	return core.Calm, false, nil
}

// Fixed pins every occupant to one state.
type Fixed struct {
	State core.BehaviorState
}

func (f Fixed) Decide(context.Context, Observation) (core.BehaviorState, bool, error) {
	return f.State, true, nil
}

// Random assigns each occupant a random state the first time it is seen and keeps it for the
// episode.
type Random struct {
	mu     sync.Mutex
	rng    *rand.Rand
	states map[core.EntityID]core.BehaviorState
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed)), states: make(map[core.EntityID]core.BehaviorState)}
}

func (r *Random) Decide(_ context.Context, obs Observation) (core.BehaviorState, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[obs.OccupantID]
	if !ok {
		s = core.BehaviorState(r.rng.Intn(3))
		r.states[obs.OccupantID] = s
	}
	return s, true, nil
}

func (r *Random) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.states)
}

// Remote asks an external policy over HTTP.
type Remote struct {
	client *api.Client
}

func NewRemote(client *api.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Decide(ctx context.Context, obs Observation) (core.BehaviorState, bool, error) {
	resp, err := r.client.Decide(ctx, api.DecideRequest{
		OccupantID:  obs.OccupantID,
		Observation: obs.Vector(),
		Reward:      obs.Reward,
	})
	if err != nil {
		return core.Calm, false, err
	}
	if !resp.Override {
		return core.Calm, false, nil
	}
	s, err := core.ParseBehaviorState(resp.State)
	if err != nil {
		return core.Calm, false, fmt.Errorf("remote policy: %w", err)
	}
	return s, true, nil
}
