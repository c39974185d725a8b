package occupant

import (
	"slices"

	"github.com/OCAP2/evacsim/internal/queue"
	"github.com/OCAP2/evacsim/pkg/core"
)

// DoorMemoryCapacity is how many recently crossed doors an occupant remembers.
const DoorMemoryCapacity = 3

// DoorMemory remembers the last doors an occupant walked through so exploration prefers new
// rooms. The oldest door is forgotten first.
type DoorMemory struct {
	doors *queue.Queue[core.EntityID]
	last  core.EntityID
}

func NewDoorMemory() *DoorMemory {
	return &DoorMemory{doors: queue.NewBounded[core.EntityID](DoorMemoryCapacity)}
}

// Push records a crossing. A door already remembered keeps its place.
func (m *DoorMemory) Push(id core.EntityID) {
	m.last = id
	if !m.Contains(id) {
		m.doors.Push(id)
	}
}

func (m *DoorMemory) Contains(id core.EntityID) bool {
	return slices.Contains(m.doors.Snapshot(), id)
}

// Last returns the most recently crossed door.
func (m *DoorMemory) Last() (core.EntityID, bool) {
	return m.last, m.last != core.NoEntity
}

func (m *DoorMemory) Doors() []core.EntityID { return m.doors.Snapshot() }

func (m *DoorMemory) Reset() {
	m.doors.Clear()
	m.last = core.NoEntity
}
