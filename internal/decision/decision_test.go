package decision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OCAP2/evacsim/internal/api"
	"github.com/OCAP2/evacsim/internal/occupant"
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constField core.HazardReading

func (f constField) Query(core.Vec3, float64) core.HazardReading { return core.HazardReading(f) }

func TestObserve(t *testing.T) {
	tun := tuning.Default()
	o := occupant.New(3, core.Vec3{}, constField{Density: 500, Thermal: 410, Visibility: 10}, &tun, core.Panicked)
	o.Sense(0, 0.1)

	ob := Observe(o)
	assert.Equal(t, core.EntityID(3), ob.OccupantID)
	assert.InDelta(t, (100-o.Vitals.DamageRate*0.1)/100, ob.Health, 1e-6)
	assert.InDelta(t, 0.5, ob.CO, 1e-6)
	assert.InDelta(t, 0.5, ob.Temperature, 1e-6)
	assert.InDelta(t, 1, ob.State, 1e-6)
	assert.Len(t, ob.Vector(), 5)
}

func TestShape(t *testing.T) {
	tests := []struct {
		name  string
		state core.BehaviorState
		co    float32
		want  float64
	}{
		{"panicked in clean air", core.Panicked, 50, -0.01},
		{"calm in heavy smoke", core.Calm, 1500, -0.02},
		{"anxious in moderate smoke", core.Anxious, 500, 0.005},
		{"calm in clean air", core.Calm, 50, 0},
		{"panicked in heavy smoke", core.Panicked, 1500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Shape(tt.state, core.HazardReading{Density: tt.co}))
		})
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	l.Add(1, 0.005)
	l.Outcome(core.Outcome{Kind: core.OutcomeEscape, OccupantID: 1, RemainingHealth: 50})
	l.Outcome(core.Outcome{Kind: core.OutcomeDeath, OccupantID: 2})
	l.Yield()

	assert.InDelta(t, 1.505, l.Occupant(1), 1e-9)
	assert.InDelta(t, -1, l.Occupant(2), 1e-9)
	assert.InDelta(t, 0.05, l.Team(), 1e-9)

	assert.InDelta(t, 1.505, l.Take(1), 1e-9)
	assert.Zero(t, l.Take(1))

	l.Reset()
	assert.Zero(t, l.Team())
	assert.Zero(t, l.Occupant(1))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Mixed ")
	require.NoError(t, err)
	assert.Equal(t, ModeMixed, m)

	_, err = ParseMode("berserk")
	assert.True(t, errors.Is(err, ErrUnknownPanicMode))
}

func TestForMode(t *testing.T) {
	ctx := context.Background()
	ob := Observation{OccupantID: 1}

	p, err := ForMode(ModeDynamic, 1)
	require.NoError(t, err)
	_, ok, err := p.Decide(ctx, ob)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err = ForMode(ModePanicked, 1)
	require.NoError(t, err)
	s, ok, _ := p.Decide(ctx, ob)
	assert.True(t, ok)
	assert.Equal(t, core.Panicked, s)

	_, err = ForMode("nope", 1)
	assert.ErrorIs(t, err, ErrUnknownPanicMode)
}

func TestRandom_StablePerOccupant(t *testing.T) {
	ctx := context.Background()
	r := NewRandom(42)
	first, ok, _ := r.Decide(ctx, Observation{OccupantID: 9})
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		s, _, _ := r.Decide(ctx, Observation{OccupantID: 9})
		assert.Equal(t, first, s)
	}

	seen := map[core.BehaviorState]bool{}
	for id := core.EntityID(1); id < 200; id++ {
		s, _, _ := r.Decide(ctx, Observation{OccupantID: id})
		seen[s] = true
	}
	assert.Len(t, seen, 3)

	r.Reset()
	assert.Empty(t, r.states)
}

func TestRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.DecideRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := api.DecideResponse{}
		if req.Reward > 0 {
			resp = api.DecideResponse{State: "calm", Override: true}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewRemote(api.New(server.URL, ""))
	_, ok, err := p.Decide(context.Background(), Observation{OccupantID: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	s, ok, err := p.Decide(context.Background(), Observation{OccupantID: 1, Reward: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.Calm, s)
}
