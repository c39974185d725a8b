package hazard

import "github.com/OCAP2/evacsim/pkg/core"

// hintScale is the edge length of one rendered smoke cube.
const hintScale = 0.5

// Transform places one render instance in world space.
type Transform struct {
	Position core.Vec3 `json:"position"`
	Scale    float64   `json:"scale"`
}

// RenderHint pairs an instance transform with the density that tints it.
type RenderHint struct {
	Transform Transform `json:"transform"`
	Density   float32   `json:"density"`
}

// RenderHints returns the instances to draw for this frame. The list is built on first use
// and is never read by queries. It is nil when the dataset was built without a render threshold.
func (f *Frame) RenderHints() []RenderHint {
	f.hintsOnce.Do(func() {
		if len(f.renderSamples) == 0 {
			return
		}
		f.hints = make([]RenderHint, 0, len(f.renderSamples))
		for _, s := range f.renderSamples {
			f.hints = append(f.hints, RenderHint{
				Transform: Transform{
					Position: core.Vec3{X: float64(s.X), Y: float64(s.Y), Z: float64(s.Z)},
					Scale:    hintScale,
				},
				Density: s.Density,
			})
		}
	})
	return f.hints
}

// RenderHintsAt resolves simTime like a query and returns that frame's hints.
func (e *Engine) RenderHintsAt(simTime float64) []RenderHint {
	_, f := e.frame(e.Key(simTime))
	if f == nil {
		return nil
	}
	return f.RenderHints()
}
