package occupant

import (
	"github.com/OCAP2/evacsim/internal/vision"
	"github.com/OCAP2/evacsim/pkg/core"
)

// panicked drops any leader and rushes for whatever way out it can see. Without one in view it
// wanders in a roughly constant direction.
type panicked struct{}

func (panicked) Select(o *Occupant, env *Env) {
	mv := env.Tuning.Movement
	o.Speed = mv.PanickedSpeed
	if o.Role == core.RoleFollower {
		o.leave(env)
	}

	if o.Target == nil {
		seekExit(o, env)
	}
	switch {
	case o.Target != nil:
		if !o.hasDestination || env.Now >= o.nextRetarget {
			rushTarget(o, env)
			o.nextRetarget = env.Now + mv.PanicRetargetEvery
		}
		if o.Target != nil && o.Target.Kind == core.KindDoor && o.remaining() < mv.ArriveRadius {
			o.Target = nil
		}
	case !o.hasDestination || o.remaining() < mv.RetargetRadius || env.Now >= o.nextRetarget:
		wander(o, env)
		o.nextRetarget = env.Now + mv.PanicRetargetEvery
	}

	resistRescue(o, env)
}

// seekExit looks for an exit, or failing that the nearest door other than the one just crossed.
func seekExit(o *Occupant, env *Env) {
	v := env.Tuning.Vision
	res := env.scan(o, v.DoorLayer, float64(o.Vitals.VisionRange), v.Step, core.KindExit, core.KindDoor)
	if exit, ok := res.Nearest(core.KindExit); ok {
		t := targetOf(exit)
		o.Target = &t
		return
	}

	last, _ := o.Doors.Last()
	var (
		best  vision.Hit
		found bool
	)
	for _, d := range res.OfKind(core.KindDoor) {
		if d.ID == last {
			continue
		}
		if !found || d.Distance < best.Distance {
			best, found = d, true
		}
	}
	if found {
		t := targetOf(best)
		o.Target = &t
	}
}

// rushTarget aims at a point scattered around the crossing point and snapped back onto the
// floor. Exits are approached directly.
func rushTarget(o *Occupant, env *Env) {
	mv := env.Tuning.Movement
	if o.Target.Kind == core.KindExit {
		if !o.steerTo(env, o.Target.Pos.Flat()) {
			o.Target = nil
		}
		return
	}

	accurate := o.crossing(env, o.Target.Pos)
	candidate := accurate.Add(randomInDisk(env.Rand, mv.PanicJitterRadius))
	if p, ok := env.Nav.SamplePosition(candidate, mv.PanicSnapRadius); ok && o.steerTo(env, p.Flat()) {
		return
	}
	if !o.steerTo(env, accurate) {
		o.Target = nil
	}
}

// wander keeps the previous heading within a small angle most of the time and picks a new one
// otherwise. Blocked walks fall back to the last safe position, then to a short local step.
func wander(o *Occupant, env *Env) {
	mv := env.Tuning.Movement
	prev, hadPrev := o.lastSafe, o.hasSafe
	o.lastSafe, o.hasSafe = o.Pos.Flat(), true

	var dir core.Vec3
	if o.heading != (core.Vec3{}) && env.Rand.Float64() < mv.KeepHeadingChance {
		dir = o.heading.RotateY((env.Rand.Float64()*2 - 1) * mv.HeadingJitterDeg)
	} else {
		dir = randomUnit(env.Rand)
		o.heading = dir
	}
	if o.steerTo(env, o.Pos.Flat().Add(dir.Scale(mv.WalkRadius))) {
		return
	}

	o.heading = core.Vec3{}
	if hadPrev && o.Pos.FlatDist(prev) > mv.SafeFallbackMin && o.steerTo(env, prev) {
		return
	}
	o.steerTo(env, o.Pos.Flat().Add(randomInDisk(env.Rand, mv.LocalOffset)))
}

// resistRescue handles a rescue agent within contact range. The occupant first backs away for
// ResistDuration, then calms down to anxious and follows the agent.
func resistRescue(o *Occupant, env *Env) {
	rs := env.Tuning.Rescue
	res := env.scan(o, env.Tuning.Vision.AgentLayer, rs.ContactRadius, rs.ContactStep, core.KindRescueAgent)
	hit, ok := res.Nearest(core.KindRescueAgent)
	var agent Body
	if ok {
		agent, ok = env.activeBody(hit.ID)
	}
	if !ok {
		o.contact = nil
		return
	}

	if o.contact == nil || o.contact.agent != hit.ID {
		o.contact = &contact{agent: hit.ID, since: env.Now}
	}
	if env.Now-o.contact.since < rs.ResistDuration {
		away := o.Pos.Sub(agent.Pos).Flat().Normalize()
		if away == (core.Vec3{}) {
			away = randomUnit(env.Rand)
		}
		o.push = away.Scale(rs.PushSpeed)
		return
	}

	o.contact = nil
	o.Target = nil
	o.clearDestination()
	o.FSM.Force(core.Anxious)
	if env.Graph.Bind(o.ID, hit.ID) {
		o.Role = core.RoleFollower
	}
	env.logger().Debug("panicked occupant yielded to rescue agent", "occupant", o.ID, "agent", hit.ID)
	if env.OnYield != nil {
		env.OnYield(o.ID, hit.ID)
	}
}
