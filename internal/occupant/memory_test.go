package occupant

import (
	"testing"

	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestDoorMemory(t *testing.T) {
	m := NewDoorMemory()
	_, ok := m.Last()
	assert.False(t, ok)

	for _, id := range []core.EntityID{1, 2, 3, 4} {
		m.Push(id)
	}
	assert.Equal(t, []core.EntityID{2, 3, 4}, m.Doors())
	assert.False(t, m.Contains(1))

	m.Push(3)
	assert.Equal(t, []core.EntityID{2, 3, 4}, m.Doors())
	last, ok := m.Last()
	assert.True(t, ok)
	assert.Equal(t, core.EntityID(3), last)

	m.Reset()
	assert.Empty(t, m.Doors())
	_, ok = m.Last()
	assert.False(t, ok)
}
