// pkg/core/hazard.go
package core

// HazardSample is one measured point of a precomputed hazard simulation.
// Y is the height of the sample; X/Z select the floor column.
type HazardSample struct {
	Time       float32 `json:"time"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Z          float32 `json:"z"`
	Density    float32 `json:"density"`    // smoke/CO, ppm
	Thermal    float32 `json:"thermal"`    // temperature, C
	Visibility float32 `json:"visibility"` // meters
}

// HazardReading is the value answered for a (position, time) query.
type HazardReading struct {
	Density    float32 `json:"density"`
	Thermal    float32 `json:"thermal"`
	Visibility float32 `json:"visibility"`
}

// IsZero reports whether the reading carries no data.
func (r HazardReading) IsZero() bool {
	return r == HazardReading{}
}
