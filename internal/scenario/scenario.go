// Package scenario loads the static building layout: walkable floor, walls, doors, exits and
// spawn areas. Layout generation is done elsewhere; this only reads its output.
package scenario

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/OCAP2/evacsim/internal/nav"
	"github.com/OCAP2/evacsim/internal/vision"
	"github.com/OCAP2/evacsim/pkg/core"
	"gopkg.in/yaml.v3"
)

// Point is an (x, z) floor coordinate.
type Point [2]float64

// Vec lifts the point onto the floor.
func (p Point) Vec() core.Vec3 { return core.Vec3{X: p[0], Z: p[1]} }

// Wall is a segment between two points.
type Wall [2]Point

// Region is an axis aligned spawn rectangle.
type Region struct {
	Min Point `yaml:"min"`
	Max Point `yaml:"max"`
}

// Sample returns a uniformly distributed point inside the region.
func (r Region) Sample(rng *rand.Rand) core.Vec3 {
	return core.Vec3{
		X: r.Min[0] + rng.Float64()*(r.Max[0]-r.Min[0]),
		Z: r.Min[1] + rng.Float64()*(r.Max[1]-r.Min[1]),
	}
}

// Patrol is a rescue agent spawn and the route it walks while it has no followers.
type Patrol struct {
	Spawn Point   `yaml:"spawn"`
	Route []Point `yaml:"route"`
}

type Layout struct {
	Name       string   `yaml:"name"`
	Area       string   `yaml:"area"`
	Walls      []Wall   `yaml:"walls"`
	Doors      []Point  `yaml:"doors"`
	Exits      []Point  `yaml:"exits"`
	Spawn      Region   `yaml:"spawn"`
	Agents     []Patrol `yaml:"agents"`
	Occupants  int      `yaml:"occupants"`
	DoorRadius float64  `yaml:"door_radius"`
	ExitRadius float64  `yaml:"exit_radius"`
}

// Default is a two room floor inside the default hazard grid. The west room holds the
// occupants, one door leads east and the exit sits in the east wall.
func Default() Layout {
	return Layout{
		Name: "two-room",
		Area: "POLYGON((-8 -8,38 -8,38 38,-8 38,-8 -8))",
		Walls: []Wall{
			{{-8, -8}, {38, -8}},
			{{-8, 38}, {38, 38}},
			{{-8, -8}, {-8, 38}},
			{{38, -8}, {38, 14}},
			{{38, 16}, {38, 38}},
			{{15, -8}, {15, 14}},
			{{15, 16}, {15, 38}},
		},
		Doors:  []Point{{15, 15}},
		Exits:  []Point{{37.5, 15}},
		Spawn:  Region{Min: Point{-6, -6}, Max: Point{12, 36}},
		Agents: []Patrol{{Spawn: Point{30, 15}, Route: []Point{{17, 15}, {5, 15}, {5, 30}, {5, 15}, {5, 0}, {5, 15}}}},

		Occupants:  50,
		DoorRadius: 0.6,
		ExitRadius: 1,
	}
}

// Load reads a YAML layout over the default radii and population.
func Load(path string) (Layout, error) {
	l := Layout{Occupants: 50, DoorRadius: 0.6, ExitRadius: 1}
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return l, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// Validate checks the parts the simulation cannot run without.
func (l Layout) Validate() error {
	var errs []error
	if l.Area == "" {
		errs = append(errs, errors.New("area is required"))
	}
	if len(l.Exits) == 0 {
		errs = append(errs, errors.New("at least one exit is required"))
	}
	if l.Occupants < 0 {
		errs = append(errs, errors.New("occupants must not be negative"))
	}
	if l.Spawn.Max[0] < l.Spawn.Min[0] || l.Spawn.Max[1] < l.Spawn.Min[1] {
		errs = append(errs, errors.New("spawn region is inverted"))
	}
	if l.DoorRadius <= 0 || l.ExitRadius <= 0 {
		errs = append(errs, errors.New("door and exit radius must be positive"))
	}
	return errors.Join(errs...)
}

// FloorPlan builds the reference navigator for the layout.
func (l Layout) FloorPlan() (*nav.FloorPlan, error) {
	segs := make([]nav.Segment, 0, len(l.Walls))
	for _, w := range l.Walls {
		segs = append(segs, nav.Segment{A: w[0].Vec(), B: w[1].Vec()})
	}
	return nav.NewFloorPlan(l.Area, segs)
}

// VisionWalls returns the walls as occluders on both scan layers.
func (l Layout) VisionWalls() []vision.Wall {
	out := make([]vision.Wall, 0, 2*len(l.Walls))
	for _, layer := range []string{vision.LayerDefault, vision.LayerFollower} {
		for _, w := range l.Walls {
			out = append(out, vision.Wall{A: w[0].Vec(), B: w[1].Vec(), Layer: layer})
		}
	}
	return out
}
