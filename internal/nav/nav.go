// Package nav is the boundary to the navigation service. FloorPlan is a straight-line
// reference implementation over a polygon floor and wall segments.
package nav

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/evacsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrUnreachable is returned when no path leads to the destination.
var ErrUnreachable = errors.New("destination unreachable")

// Navigator answers the navigation questions movement strategies ask.
type Navigator interface {
	// SamplePosition snaps p onto walkable space no further than maxDist away.
	SamplePosition(p core.Vec3, maxDist float64) (core.Vec3, bool)
	// Reachable reports whether an agent at from can walk to to.
	Reachable(from, to core.Vec3) bool
	// Steer advances from towards to by at most maxStep.
	Steer(from, to core.Vec3, maxStep float64) (core.Vec3, error)
}

var (
	_ Navigator = (*FloorPlan)(nil)
	_ Navigator = Open{}
)

// Segment is a wall on the floor plane.
type Segment struct {
	A, B core.Vec3
}

// FloorPlan walks in straight lines inside a walkable polygon and refuses moves that cross a
// wall.
type FloorPlan struct {
	area  geom.Geometry
	walls []geom.LineString
	segs  []Segment
}

// NewFloorPlan parses the walkable area from WKT.
func NewFloorPlan(areaWKT string, walls []Segment) (*FloorPlan, error) {
	area, err := geom.UnmarshalWKT(areaWKT)
	if err != nil {
		return nil, fmt.Errorf("error parsing floor area: %w", err)
	}
	if area.IsEmpty() {
		return nil, errors.New("floor area is empty")
	}
	fp := &FloorPlan{area: area, segs: walls}
	for _, w := range walls {
		fp.walls = append(fp.walls, segment(w.A, w.B))
	}
	return fp, nil
}

func point(p core.Vec3) geom.Geometry {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Z}}).AsGeometry()
}

func segment(a, b core.Vec3) geom.LineString {
	seq := geom.NewSequence([]float64{a.X, a.Z, b.X, b.Z}, geom.DimXY)
	return geom.NewLineString(seq)
}

// Walls returns the wall segments.
func (f *FloorPlan) Walls() []Segment { return f.segs }

// Walkable reports whether p lies on the floor.
func (f *FloorPlan) Walkable(p core.Vec3) bool {
	return geom.Intersects(f.area, point(p))
}

// Reachable implements Navigator.
func (f *FloorPlan) Reachable(from, to core.Vec3) bool {
	if !f.Walkable(to) {
		return false
	}
	if from.FlatDist(to) < 1e-9 {
		return true
	}
	path := segment(from, to).AsGeometry()
	for _, w := range f.walls {
		if geom.Intersects(path, w.AsGeometry()) {
			return false
		}
	}
	return true
}

// SamplePosition implements Navigator. It searches rings of growing radius around p.
func (f *FloorPlan) SamplePosition(p core.Vec3, maxDist float64) (core.Vec3, bool) {
	if f.Walkable(p) {
		return p, true
	}
	const (
		ringStep = 0.25
		spokes   = 16
	)
	for r := ringStep; r <= maxDist+1e-9; r += ringStep {
		for i := 0; i < spokes; i++ {
			c := p.Add(core.HeadingFromYaw(float64(i) * 360 / spokes).Scale(r))
			if f.Walkable(c) {
				return c, true
			}
		}
	}
	return core.Vec3{}, false
}

// Steer implements Navigator.
func (f *FloorPlan) Steer(from, to core.Vec3, maxStep float64) (core.Vec3, error) {
	d := to.Flat().Sub(from.Flat())
	dist := d.Len()
	if dist < 1e-9 {
		return from, nil
	}
	step := math.Min(maxStep, dist)
	next := from.Add(d.Scale(step / dist))
	next.Y = from.Y
	if !f.Reachable(from, next) {
		return from, ErrUnreachable
	}
	return next, nil
}

// Open is a navigator without walls or bounds.
type Open struct{}

func (Open) SamplePosition(p core.Vec3, _ float64) (core.Vec3, bool) { return p, true }
func (Open) Reachable(_, _ core.Vec3) bool                           { return true }

func (Open) Steer(from, to core.Vec3, maxStep float64) (core.Vec3, error) {
	d := to.Flat().Sub(from.Flat())
	dist := d.Len()
	if dist <= maxStep || dist < 1e-9 {
		return core.Vec3{X: to.X, Y: from.Y, Z: to.Z}, nil
	}
	return from.Add(d.Scale(maxStep / dist)), nil
}
