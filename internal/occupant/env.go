package occupant

import (
	"log/slog"
	"math/rand"

	"github.com/OCAP2/evacsim/internal/nav"
	"github.com/OCAP2/evacsim/internal/social"
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/internal/vision"
	"github.com/OCAP2/evacsim/pkg/core"
)

// Body is what an occupant can learn about another entity it has spotted.
type Body struct {
	ID      core.EntityID
	Kind    core.Kind
	Pos     core.Vec3
	Forward core.Vec3
	Active  bool
	// Purpose is set for occupants that are following someone or heading for a door.
	Purpose bool
}

// Directory resolves entity IDs seen by a scan.
type Directory interface {
	Lookup(id core.EntityID) (Body, bool)
}

// Env is the shared world view handed to strategies during the serialized part of a tick.
type Env struct {
	Now    float64
	Dt     float64
	Scene  vision.Source
	Nav    nav.Navigator
	Graph  *social.Graph
	Bodies Directory
	Rand   *rand.Rand
	Tuning *tuning.Tuning
	Logger *slog.Logger

	// OnYield is called when a panicked occupant gives in to a rescue agent.
	OnYield func(occupant, agent core.EntityID)
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) scan(o *Occupant, layer string, rng, step float64, kinds ...core.Kind) vision.Result {
	return vision.Scan(e.Scene, vision.Request{
		Origin:      o.Pos,
		Forward:     o.Forward,
		FieldOfView: e.Tuning.Vision.FieldOfView,
		Step:        step,
		Range:       rng,
		Kinds:       kinds,
		Layer:       layer,
		Exclude:     o.ID,
	})
}

// activeBody looks up a spotted entity and reports whether it is still active.
func (e *Env) activeBody(id core.EntityID) (Body, bool) {
	if e.Bodies == nil {
		return Body{}, false
	}
	b, ok := e.Bodies.Lookup(id)
	return b, ok && b.Active
}
