// Package vision casts fans of rays over the floor plane to discover doors, exits, rescue
// agents and open directions around an occupant.
package vision

import (
	"math"
	"slices"

	"github.com/OCAP2/evacsim/pkg/core"
)

// Layer names used by the simulation. Rays only test colliders on the requested layer.
const (
	LayerDefault  = "default"
	LayerFollower = "follower"
)

// Entity is a round collider.
type Entity struct {
	ID     core.EntityID
	Kind   core.Kind
	Pos    core.Vec3
	Radius float64
	Layer  string
}

// Wall is a segment collider on the floor plane.
type Wall struct {
	A, B  core.Vec3
	Layer string
}

// Source returns the colliders on a layer.
type Source interface {
	Colliders(layer string) ([]Entity, []Wall)
}

// Request describes one fan. FieldOfView and Step are in degrees; the fan is centered on
// Forward.
type Request struct {
	Origin      core.Vec3
	Forward     core.Vec3
	FieldOfView float64
	Step        float64
	Range       float64
	Kinds       []core.Kind
	Layer       string
	Exclude     core.EntityID
}

// Hit is a matching entity and the shortest ray that reached it.
type Hit struct {
	Entity
	Distance  float64
	Direction core.Vec3
}

// Result holds deduplicated hits in discovery order and the directions of rays that hit
// nothing.
type Result struct {
	Hits []Hit
	Open []core.Vec3
}

// Scan casts one ray per Step across the field of view. Each ray stops at the nearest
// collider on the layer; if that collider is an entity of a requested kind it becomes a hit.
func Scan(src Source, req Request) Result {
	var res Result
	if req.Step <= 0 || req.Range <= 0 {
		return res
	}

	entities, walls := src.Colliders(req.Layer)
	forward := req.Forward.Flat().Normalize()
	if forward == (core.Vec3{}) {
		forward = core.Forward
	}
	origin := req.Origin.Flat()

	half := int(math.Floor(req.FieldOfView / (2 * req.Step)))
	full := req.FieldOfView >= 360
	seen := make(map[core.EntityID]int)

	for i := -half; i <= half; i++ {
		angle := float64(i) * req.Step
		if full && i == half && i > -half && math.Mod(2*angle, 360) < 1e-9 {
			// the far end of a closed circle repeats the first ray
			continue
		}
		dir := forward.RotateY(angle)

		best := req.Range
		var hit *Entity
		blocked := false
		for j := range entities {
			e := &entities[j]
			if e.ID == req.Exclude {
				continue
			}
			if d, ok := rayCircle(origin, dir, e.Pos.Flat(), e.Radius); ok && d <= best {
				best, hit, blocked = d, e, true
			}
		}
		for _, w := range walls {
			if d, ok := raySegment(origin, dir, w.A.Flat(), w.B.Flat()); ok && d < best {
				best, hit, blocked = d, nil, true
			}
		}

		if !blocked {
			res.Open = append(res.Open, dir)
			continue
		}
		if hit == nil || !slices.Contains(req.Kinds, hit.Kind) {
			continue
		}
		if k, ok := seen[hit.ID]; ok {
			if best < res.Hits[k].Distance {
				res.Hits[k].Distance, res.Hits[k].Direction = best, dir
			}
			continue
		}
		seen[hit.ID] = len(res.Hits)
		res.Hits = append(res.Hits, Hit{Entity: *hit, Distance: best, Direction: dir})
	}
	return res
}

// OfKind returns the hits of one kind.
func (r Result) OfKind(kind core.Kind) []Hit {
	var out []Hit
	for _, h := range r.Hits {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Nearest returns the closest hit of kind.
func (r Result) Nearest(kind core.Kind) (Hit, bool) {
	var (
		best  Hit
		found bool
	)
	for _, h := range r.Hits {
		if h.Kind == kind && (!found || h.Distance < best.Distance) {
			best, found = h, true
		}
	}
	return best, found
}

// rayCircle returns the distance along a unit ray to a circle, or false when it misses.
// A ray starting inside the circle hits at distance zero.
func rayCircle(o, dir, c core.Vec3, r float64) (float64, bool) {
	oc := c.Sub(o)
	proj := oc.Dot(dir)
	d2 := oc.Dot(oc) - proj*proj
	r2 := r * r
	if oc.Dot(oc) <= r2 {
		return 0, true
	}
	if proj < 0 || d2 > r2 {
		return 0, false
	}
	return proj - math.Sqrt(r2-d2), true
}

// raySegment intersects a unit ray with segment ab on the X/Z plane.
func raySegment(o, dir, a, b core.Vec3) (float64, bool) {
	ex, ez := b.X-a.X, b.Z-a.Z
	den := dir.X*ez - dir.Z*ex
	if math.Abs(den) < 1e-12 {
		return 0, false
	}
	ax, az := a.X-o.X, a.Z-o.Z
	t := (ax*ez - az*ex) / den
	u := (ax*dir.Z - az*dir.X) / den
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
