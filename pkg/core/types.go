// pkg/core/types.go
package core

import "math"

// EntityID identifies an occupant, rescue agent, door or exit inside one simulation arena.
// IDs are handed out from 1; the zero value means "none".
type EntityID uint32

// NoEntity is the zero ID.
const NoEntity EntityID = 0

// Kind tags scannable entities.
type Kind uint8

const (
	KindOccupant Kind = iota + 1
	KindRescueAgent
	KindDoor
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindOccupant:
		return "occupant"
	case KindRescueAgent:
		return "rescue_agent"
	case KindDoor:
		return "door"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Vec3 is a world position in meters. Y is height, the floor plane is X/Z.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3         { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3         { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3    { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64      { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64            { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Dist(o Vec3) float64     { return v.Sub(o).Len() }
func (v Vec3) Flat() Vec3              { return Vec3{X: v.X, Z: v.Z} }
func (v Vec3) FlatDist(o Vec3) float64 { return v.Flat().Dist(o.Flat()) }

// Normalize returns the unit vector, or the zero vector for a zero-length input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// RotateY rotates v around the vertical axis by deg degrees (clockwise seen from above).
func (v Vec3) RotateY(deg float64) Vec3 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// Forward is the heading used by entities that have not moved yet.
var Forward = Vec3{Z: 1}

// HeadingFromYaw returns the unit floor vector for a yaw in degrees.
func HeadingFromYaw(deg float64) Vec3 {
	return Forward.RotateY(deg)
}

// InverseLerp maps v from [a,b] onto [0,1], clamped. A degenerate range returns 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
