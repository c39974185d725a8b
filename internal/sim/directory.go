package sim

import (
	"github.com/OCAP2/evacsim/internal/occupant"
	"github.com/OCAP2/evacsim/pkg/core"
)

var _ occupant.Directory = (*Simulation)(nil)

// Lookup resolves an occupant, rescue agent, door or exit for the strategies.
func (s *Simulation) Lookup(id core.EntityID) (occupant.Body, bool) {
	if o, ok := s.byID[id]; ok {
		return occupant.Body{
			ID:      o.ID,
			Kind:    core.KindOccupant,
			Pos:     o.Pos,
			Forward: o.Forward,
			Active:  o.Active(),
			Purpose: o.HasPurpose(),
		}, true
	}
	if a, ok := s.agentByID[id]; ok {
		return a.Body(), true
	}
	b, ok := s.fixtures[id]
	return b, ok
}
