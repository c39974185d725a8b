// Package decision is the boundary to an external behavior policy. Once per decision interval
// every occupant is observed, rewarded and may have its behavior state overridden.
package decision

import (
	"github.com/OCAP2/evacsim/internal/occupant"
	"github.com/OCAP2/evacsim/pkg/core"
)

// Observation is the normalized occupant state a policy sees.
type Observation struct {
	OccupantID  core.EntityID
	Health      float32
	CO          float32
	Temperature float32
	Panic       float32
	State       float32

	// Reward gathered since the previous decision. Not part of Vector.
	Reward float64
}

// Observe builds the observation of an occupant from its last hazard reading.
func Observe(o *occupant.Occupant) Observation {
	r := o.Reading()
	return Observation{
		OccupantID:  o.ID,
		Health:      float32(o.Vitals.Health / 100),
		CO:          float32(core.Clamp01(float64(r.Density) / 1000)),
		Temperature: float32(core.InverseLerp(20, 800, float64(r.Thermal))),
		Panic:       float32(o.Vitals.Panic),
		State:       float32(o.State()) / 2,
	}
}

// Vector flattens the observation in the order the policy was trained on.
func (ob Observation) Vector() []float32 {
	return []float32{ob.Health, ob.CO, ob.Temperature, ob.Panic, ob.State}
}
