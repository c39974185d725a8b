package occupant

import (
	"math/rand"

	"github.com/OCAP2/evacsim/internal/hazard"
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/pkg/core"
)

// trailEvery and trailCap bound the recorded path of an occupant.
const (
	trailEvery = 1.0
	trailCap   = 240
)

// Target is the door or exit an occupant is walking through.
type Target struct {
	ID   core.EntityID
	Kind core.Kind
	Pos  core.Vec3
}

type contact struct {
	agent core.EntityID
	since float64
}

// Occupant is one simulated evacuee.
type Occupant struct {
	ID      core.EntityID
	Pos     core.Vec3
	Forward core.Vec3
	Vitals  Vitals
	FSM     *FSM
	Role    core.Role
	Speed   float64
	Doors   *DoorMemory
	Target  *Target
	Stuck   int

	destination    core.Vec3
	hasDestination bool

	field   hazard.Field
	reading core.HazardReading
	active  bool
	fate    core.OutcomeKind

	heading      core.Vec3
	lastSafe     core.Vec3
	hasSafe      bool
	nextRetarget float64
	contact      *contact
	push         core.Vec3

	trail     []core.Vec3
	nextTrail float64
}

// New places an occupant at pos. field is the occupant's own view of the hazard data so
// concurrent queries never share a frame cache.
func New(id core.EntityID, pos core.Vec3, field hazard.Field, t *tuning.Tuning, initial core.BehaviorState) *Occupant {
	return &Occupant{
		ID:      id,
		Pos:     pos,
		Forward: core.Forward,
		Vitals:  NewVitals(t.Vitals),
		FSM:     NewFSM(t.Behavior, initial),
		Role:    core.RoleLeader,
		Speed:   t.Movement.CalmSpeed,
		Doors:   NewDoorMemory(),
		field:   field,
		active:  true,
	}
}

func (o *Occupant) Active() bool                   { return o.active }
func (o *Occupant) Fate() core.OutcomeKind         { return o.fate }
func (o *Occupant) Reading() core.HazardReading    { return o.reading }
func (o *Occupant) State() core.BehaviorState      { return o.FSM.State() }
func (o *Occupant) Destination() (core.Vec3, bool) { return o.destination, o.hasDestination }
func (o *Occupant) Trail() []core.Vec3             { return o.trail }
func (o *Occupant) HasPurpose() bool               { return o.Role == core.RoleFollower || o.Target != nil }

// Sense queries the hazard field at the occupant's position and applies damage and the panic
// cadence. It only touches the occupant, so the simulation may run it in parallel.
func (o *Occupant) Sense(now, dt float64) core.HazardReading {
	if !o.active {
		return o.reading
	}
	o.reading = o.field.Query(o.Pos, now)
	o.Vitals.Decay(o.reading, dt)
	o.Vitals.UpdatePanic(o.reading, dt)
	return o.reading
}

// Finish moves the occupant into its terminal state. It returns false when the occupant had
// already died or escaped.
func (o *Occupant) Finish(kind core.OutcomeKind) bool {
	if !o.active {
		return false
	}
	o.active = false
	o.fate = kind
	o.Target = nil
	o.clearDestination()
	o.contact = nil
	return true
}

// Deactivate takes the occupant out of the episode without an outcome. Used when an episode is
// torn down.
func (o *Occupant) Deactivate() {
	o.active = false
	o.Target = nil
	o.clearDestination()
	o.contact = nil
	o.push = core.Vec3{}
}

// Outcome describes the terminal transition for the event stream.
func (o *Occupant) Outcome(episode int, elapsed float64) core.Outcome {
	return core.Outcome{
		Kind:            o.fate,
		OccupantID:      o.ID,
		RemainingHealth: float32(max(o.Vitals.Health, 0)),
		ElapsedTime:     elapsed,
		Episode:         episode,
		State:           o.FSM.State(),
		Position:        o.Pos,
		Trail:           append([]core.Vec3(nil), o.trail...),
	}
}

// PassDoor records a door crossing.
func (o *Occupant) PassDoor(id core.EntityID) {
	o.Doors.Push(id)
}

// Move advances the occupant toward its destination by at most Speed*dt. A pending push from a
// rescue contact replaces the regular step for one tick.
func (o *Occupant) Move(env *Env) {
	if !o.active {
		return
	}
	defer o.record(env.Now)

	if o.push != (core.Vec3{}) {
		next := o.Pos.Add(o.push.Scale(env.Dt))
		if env.Nav.Reachable(o.Pos, next) {
			o.Pos = next
			o.Forward = o.push.Normalize()
		}
		o.push = core.Vec3{}
		return
	}
	if !o.hasDestination {
		return
	}

	next, err := env.Nav.Steer(o.Pos, o.destination, o.Speed*env.Dt)
	if err != nil {
		o.Stuck++
		if o.Stuck >= env.Tuning.Movement.StuckLimit {
			env.logger().Debug("occupant stuck, dropping destination",
				"occupant", o.ID, "state", o.FSM.State(), "stuck", o.Stuck)
			o.Target = nil
			o.clearDestination()
		}
		return
	}
	if d := next.Sub(o.Pos).Flat(); d.Len() > 1e-9 {
		o.Forward = d.Normalize()
	}
	o.Pos = next
}

func (o *Occupant) record(now float64) {
	if now < o.nextTrail {
		return
	}
	o.nextTrail = now + trailEvery
	if len(o.trail) >= trailCap {
		o.trail = o.trail[1:]
	}
	o.trail = append(o.trail, o.Pos)
}

// steerTo sets the destination when it can be reached in a straight line. A refused destination
// counts toward the stuck counter and leaves the previous one in place.
func (o *Occupant) steerTo(env *Env, dest core.Vec3) bool {
	if !env.Nav.Reachable(o.Pos, dest) {
		o.Stuck++
		return false
	}
	o.destination = dest
	o.hasDestination = true
	o.Stuck = 0
	return true
}

func (o *Occupant) clearDestination() {
	o.destination = core.Vec3{}
	o.hasDestination = false
}

func (o *Occupant) remaining() float64 {
	if !o.hasDestination {
		return 0
	}
	return o.Pos.FlatDist(o.destination)
}

// crossing is a point DoorCrossing meters beyond a door as seen from the occupant.
func (o *Occupant) crossing(env *Env, door core.Vec3) core.Vec3 {
	dir := door.Sub(o.Pos).Flat().Normalize()
	return door.Flat().Add(dir.Scale(env.Tuning.Movement.DoorCrossing))
}

func randomUnit(rng *rand.Rand) core.Vec3 {
	return core.HeadingFromYaw(rng.Float64() * 360)
}

func randomInDisk(rng *rand.Rand, radius float64) core.Vec3 {
	return randomUnit(rng).Scale(radius * rng.Float64())
}
