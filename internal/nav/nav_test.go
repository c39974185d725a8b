package nav

import (
	"testing"

	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareWKT = "POLYGON((0 0,10 0,10 10,0 10,0 0))"

// a wall at x=5 with a gap between z=4 and z=6
func roomWithGap(t *testing.T) *FloorPlan {
	t.Helper()
	fp, err := NewFloorPlan(squareWKT, []Segment{
		{A: core.Vec3{X: 5, Z: 0}, B: core.Vec3{X: 5, Z: 4}},
		{A: core.Vec3{X: 5, Z: 6}, B: core.Vec3{X: 5, Z: 10}},
	})
	require.NoError(t, err)
	return fp
}

func TestNewFloorPlan_Errors(t *testing.T) {
	_, err := NewFloorPlan("POLYGON((0 0,", nil)
	assert.Error(t, err)

	_, err = NewFloorPlan("POLYGON EMPTY", nil)
	assert.Error(t, err)
}

func TestWalkable(t *testing.T) {
	fp := roomWithGap(t)
	assert.True(t, fp.Walkable(core.Vec3{X: 2, Z: 2}))
	assert.False(t, fp.Walkable(core.Vec3{X: -1, Z: 2}))
}

func TestReachable(t *testing.T) {
	fp := roomWithGap(t)
	tests := []struct {
		name     string
		from, to core.Vec3
		want     bool
	}{
		{"same room", core.Vec3{X: 1, Z: 1}, core.Vec3{X: 4, Z: 8}, true},
		{"through wall", core.Vec3{X: 2, Z: 2}, core.Vec3{X: 8, Z: 2}, false},
		{"through gap", core.Vec3{X: 2, Z: 5}, core.Vec3{X: 8, Z: 5}, true},
		{"outside floor", core.Vec3{X: 2, Z: 2}, core.Vec3{X: 2, Z: 12}, false},
		{"no move", core.Vec3{X: 2, Z: 2}, core.Vec3{X: 2, Z: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fp.Reachable(tt.from, tt.to))
		})
	}
}

func TestSamplePosition(t *testing.T) {
	fp := roomWithGap(t)

	p, ok := fp.SamplePosition(core.Vec3{X: 3, Z: 3}, 1)
	require.True(t, ok)
	assert.Equal(t, core.Vec3{X: 3, Z: 3}, p)

	p, ok = fp.SamplePosition(core.Vec3{X: -0.5, Z: 5}, 1)
	require.True(t, ok)
	assert.True(t, fp.Walkable(p))
	assert.LessOrEqual(t, p.FlatDist(core.Vec3{X: -0.5, Z: 5}), 1.0+1e-9)

	_, ok = fp.SamplePosition(core.Vec3{X: -5, Z: 5}, 1)
	assert.False(t, ok)
}

func TestSteer(t *testing.T) {
	fp := roomWithGap(t)

	next, err := fp.Steer(core.Vec3{X: 1, Z: 5}, core.Vec3{X: 9, Z: 5}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 3, next.X, 1e-9)

	next, err = fp.Steer(core.Vec3{X: 4, Z: 5}, core.Vec3{X: 4.5, Z: 5}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, next.X, 1e-9)

	from := core.Vec3{X: 4, Z: 1}
	next, err = fp.Steer(from, core.Vec3{X: 9, Z: 1}, 2)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, from, next)
}

func TestOpen(t *testing.T) {
	var n Navigator = Open{}
	next, err := n.Steer(core.Vec3{}, core.Vec3{X: 10}, 4)
	require.NoError(t, err)
	assert.Equal(t, core.Vec3{X: 4}, next)

	next, err = n.Steer(core.Vec3{}, core.Vec3{X: 1}, 4)
	require.NoError(t, err)
	assert.Equal(t, core.Vec3{X: 1}, next)
	assert.True(t, n.Reachable(core.Vec3{}, core.Vec3{X: 1000}))
}
