package occupant

import (
	"github.com/OCAP2/evacsim/internal/vision"
	"github.com/OCAP2/evacsim/pkg/core"
)

// Strategy picks the destination of an occupant for the current tick.
type Strategy interface {
	Select(o *Occupant, env *Env)
}

var strategies = map[core.BehaviorState]Strategy{
	core.Calm:     guided{},
	core.Anxious:  guided{herd: true},
	core.Panicked: panicked{},
}

// For returns the strategy of a behavior state.
func For(s core.BehaviorState) Strategy {
	if st, ok := strategies[s]; ok {
		return st
	}
	return guided{}
}

// Decide runs the strategy of the occupant's current state.
func (o *Occupant) Decide(env *Env) {
	if !o.active {
		return
	}
	For(o.FSM.State()).Select(o, env)
}

// guided is the calm behavior: lead the way through unexplored doors, or follow a rescue agent.
// The herd variant is the anxious one. It walks faster and also tags along with other
// occupants who look like they know where they are going.
type guided struct {
	herd bool
}

func (g guided) Select(o *Occupant, env *Env) {
	mv := env.Tuning.Movement
	o.Speed = mv.CalmSpeed
	if g.herd {
		o.Speed = mv.AnxiousSpeed
	}
	if o.Role == core.RoleFollower {
		g.follow(o, env)
		return
	}
	g.lead(o, env)
}

func (g guided) lead(o *Occupant, env *Env) {
	mv := env.Tuning.Movement
	v := env.Tuning.Vision

	if o.Target != nil {
		if o.hasDestination && o.remaining() > mv.RetargetRadius {
			if o.Target.Kind != core.KindExit {
				g.findLeader(o, env)
			}
			return
		}
		o.Target = nil
		o.clearDestination()
	}

	if o.remaining() > 0.1 && g.findLeader(o, env) {
		return
	}

	res := env.scan(o, v.DoorLayer, float64(o.Vitals.VisionRange), v.Step, core.KindDoor, core.KindExit)
	if exit, ok := res.Nearest(core.KindExit); ok && o.approach(env, targetOf(exit)) {
		return
	}
	if door, ok := pickDoor(o, env, res.OfKind(core.KindDoor)); ok && o.approach(env, door) {
		return
	}
	if o.remaining() > mv.RetargetRadius {
		return
	}
	if len(res.Open) > 0 {
		dir := res.Open[env.Rand.Intn(len(res.Open))]
		if o.steerTo(env, o.Pos.Flat().Add(dir.Scale(float64(o.Vitals.VisionRange)))) {
			return
		}
	}

	// dead end: go back the way we came
	if last, ok := o.Doors.Last(); ok {
		if b, found := env.Bodies.Lookup(last); found {
			o.approach(env, Target{ID: b.ID, Kind: b.Kind, Pos: b.Pos})
		}
	}
}

// findLeader binds the occupant to the first active rescue agent in view. Herding occupants
// also accept other occupants with a purpose, unless that would close a cycle.
func (g guided) findLeader(o *Occupant, env *Env) bool {
	v := env.Tuning.Vision
	kinds := []core.Kind{core.KindRescueAgent}
	if g.herd {
		kinds = append(kinds, core.KindOccupant)
	}
	res := env.scan(o, v.AgentLayer, float64(o.Vitals.VisionRange), v.Step, kinds...)

	candidates := append(res.OfKind(core.KindRescueAgent), res.OfKind(core.KindOccupant)...)
	for _, h := range candidates {
		b, ok := env.activeBody(h.ID)
		if !ok {
			continue
		}
		if h.Kind == core.KindOccupant && (!b.Purpose || env.Graph.LeadsTo(h.ID, o.ID)) {
			continue
		}
		if !env.Graph.Bind(o.ID, h.ID) {
			continue
		}
		o.Role = core.RoleFollower
		o.Target = nil
		o.clearDestination()
		return true
	}
	return false
}

func (g guided) follow(o *Occupant, env *Env) {
	mv := env.Tuning.Movement
	v := env.Tuning.Vision

	leader, ok := env.Graph.Leader(o.ID)
	var body Body
	if ok {
		body, ok = env.activeBody(leader)
	}
	if !ok || o.Stuck >= mv.StuckLimit {
		o.leave(env)
		return
	}

	res := env.scan(o, v.DoorLayer, float64(o.Vitals.VisionRange), v.Step, core.KindExit)
	if exit, found := res.Nearest(core.KindExit); found && env.Nav.Reachable(o.Pos, exit.Pos) {
		o.leave(env)
		o.approach(env, targetOf(exit))
		return
	}

	fwd := body.Forward.Flat().Normalize()
	if fwd == (core.Vec3{}) {
		fwd = core.Forward
	}
	o.steerTo(env, body.Pos.Flat().Sub(fwd.Scale(mv.FollowOffset)))
}

// leave drops the leader and turns the occupant into a leader of its own.
func (o *Occupant) leave(env *Env) {
	env.Graph.Unbind(o.ID)
	o.Role = core.RoleLeader
	o.Stuck = 0
	o.clearDestination()
}

// approach heads for a door crossing point, or straight for an exit.
func (o *Occupant) approach(env *Env, t Target) bool {
	dest := t.Pos.Flat()
	if t.Kind == core.KindDoor {
		dest = o.crossing(env, t.Pos)
	}
	if !o.steerTo(env, dest) {
		return false
	}
	o.Target = &t
	return true
}

// pickDoor prefers doors the occupant has not crossed recently, then any door except the last.
func pickDoor(o *Occupant, env *Env, doors []vision.Hit) (Target, bool) {
	last, _ := o.Doors.Last()
	var fresh, seen []vision.Hit
	for _, d := range doors {
		switch {
		case !o.Doors.Contains(d.ID):
			fresh = append(fresh, d)
		case d.ID != last:
			seen = append(seen, d)
		}
	}
	pool := fresh
	if len(pool) == 0 {
		pool = seen
	}
	if len(pool) == 0 {
		return Target{}, false
	}
	return targetOf(pool[env.Rand.Intn(len(pool))]), true
}

func targetOf(h vision.Hit) Target {
	return Target{ID: h.ID, Kind: h.Kind, Pos: h.Pos}
}
