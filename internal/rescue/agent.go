// Package rescue implements the scripted rescue agents. An agent patrols its route until
// occupants bind to it, then escorts them to the nearest reachable exit.
package rescue

import (
	"log/slog"
	"math"

	"github.com/OCAP2/evacsim/internal/nav"
	"github.com/OCAP2/evacsim/internal/occupant"
	"github.com/OCAP2/evacsim/internal/social"
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/pkg/core"
)

// exitSnapRadius is how far an exit may be moved to land on walkable floor.
const exitSnapRadius = 5.0

// Env is the world view of an agent for one tick.
type Env struct {
	Dt     float64
	Nav    nav.Navigator
	Graph  *social.Graph
	Exits  []core.Vec3
	Doors  []core.Vec3
	Tuning *tuning.Tuning
	Logger *slog.Logger

	// Active reports whether an occupant is still in the building.
	Active func(core.EntityID) bool
}

type Agent struct {
	ID      core.EntityID
	Pos     core.Vec3
	Forward core.Vec3
	Speed   float64
	Stuck   int

	spawn   core.Vec3
	route   []core.Vec3
	leg     int
	dest    core.Vec3
	hasDest bool
	active  bool
}

func New(id core.EntityID, spawn core.Vec3, route []core.Vec3, t *tuning.Tuning) *Agent {
	a := &Agent{ID: id, spawn: spawn, route: route, Speed: t.Rescue.Speed}
	a.Reset()
	return a
}

// Reset puts the agent back on its spawn point at the start of an episode.
func (a *Agent) Reset() {
	a.Pos = a.spawn
	a.Forward = core.Forward
	a.Stuck = 0
	a.leg = 0
	a.hasDest = false
	a.active = true
}

func (a *Agent) Active() bool { return a.active }

// Deactivate takes the agent out of the episode. Its followers are released.
func (a *Agent) Deactivate(g *social.Graph) []core.EntityID {
	a.active = false
	a.hasDest = false
	return g.UnbindAll(a.ID)
}

// Body describes the agent to occupants that spot it.
func (a *Agent) Body() occupant.Body {
	return occupant.Body{ID: a.ID, Kind: core.KindRescueAgent, Pos: a.Pos, Forward: a.Forward, Active: a.active}
}

// Destination returns the point the agent is walking to.
func (a *Agent) Destination() (core.Vec3, bool) { return a.dest, a.hasDest }

// Followers returns the agent's active followers. Followers that have left the building are
// unbound on the way.
func (a *Agent) Followers(env *Env) []core.EntityID {
	ids := env.Graph.Followers(a.ID)
	live := ids[:0]
	for _, id := range ids {
		if env.Active != nil && !env.Active(id) {
			env.Graph.Unbind(id)
			continue
		}
		live = append(live, id)
	}
	return live
}

// Step picks a destination and moves the agent one tick.
func (a *Agent) Step(env *Env) {
	if !a.active {
		return
	}
	if len(a.Followers(env)) > 0 {
		a.escort(env)
	} else {
		a.patrol(env)
	}
	a.move(env)
}

// escort heads for the nearest exit, or through the nearest reachable door when no exit can be
// reached in a straight line.
func (a *Agent) escort(env *Env) {
	if exit, ok := nearest(a.Pos, env.Exits); ok {
		if p, found := env.Nav.SamplePosition(exit, exitSnapRadius); found && env.Nav.Reachable(a.Pos, p) {
			a.setDest(p)
			return
		}
	}

	var (
		best     core.Vec3
		bestDist = math.Inf(1)
	)
	for _, door := range env.Doors {
		dir := door.Sub(a.Pos).Flat().Normalize()
		crossing := door.Flat().Add(dir.Scale(env.Tuning.Movement.DoorCrossing))
		if d := a.Pos.FlatDist(door); d < bestDist && env.Nav.Reachable(a.Pos, crossing) {
			best, bestDist = crossing, d
		}
	}
	if math.IsInf(bestDist, 1) {
		a.Stuck++
		return
	}
	a.setDest(best)
}

func (a *Agent) patrol(env *Env) {
	if len(a.route) == 0 {
		a.hasDest = false
		return
	}
	if a.hasDest && a.Pos.FlatDist(a.dest) > env.Tuning.Movement.RetargetRadius {
		return
	}
	for range a.route {
		next := a.route[a.leg]
		a.leg = (a.leg + 1) % len(a.route)
		if env.Nav.Reachable(a.Pos, next) {
			a.setDest(next)
			return
		}
		a.Stuck++
	}
	a.hasDest = false
}

func (a *Agent) move(env *Env) {
	if !a.hasDest {
		return
	}
	next, err := env.Nav.Steer(a.Pos, a.dest, a.Speed*env.Dt)
	if err != nil {
		a.Stuck++
		a.hasDest = false
		if env.Logger != nil {
			env.Logger.Debug("rescue agent blocked", "agent", a.ID, "stuck", a.Stuck)
		}
		return
	}
	if d := next.Sub(a.Pos).Flat(); d.Len() > 1e-9 {
		a.Forward = d.Normalize()
	}
	a.Pos = next
}

func (a *Agent) setDest(p core.Vec3) {
	a.dest = p.Flat()
	a.hasDest = true
}

func nearest(from core.Vec3, points []core.Vec3) (core.Vec3, bool) {
	var (
		best  core.Vec3
		found bool
	)
	for _, p := range points {
		if !found || from.FlatDist(p) < from.FlatDist(best) {
			best, found = p, true
		}
	}
	return best, found
}
