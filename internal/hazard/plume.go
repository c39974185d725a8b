package hazard

import (
	"errors"
	"math"

	"github.com/OCAP2/evacsim/pkg/core"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// PlumeConfig describes a synthetic smoke plume spreading from a single source.
type PlumeConfig struct {
	Grid     Grid
	Source   core.Vec3
	Duration float64 // seconds of data
	TimeStep float64
	Height   float64 // sampling height above the floor
	// Spread is how fast the smoke front moves, in meters per second.
	Spread      float64
	PeakDensity float64 // ppm at the source
	PeakThermal float64 // C at the source
	Ambient     float64 // C away from the fire
	// Stride samples every Stride-th cell on both axes.
	Stride int
	Seed   int64
}

// DefaultPlumeConfig is a two minute fire in the middle of the default grid.
func DefaultPlumeConfig() PlumeConfig {
	return PlumeConfig{
		Grid:        DefaultGrid(),
		Source:      core.Vec3{X: 15, Z: 15},
		Duration:    120,
		TimeStep:    DefaultTimeStep,
		Height:      1.6,
		Spread:      0.35,
		PeakDensity: 1200,
		PeakThermal: 600,
		Ambient:     20,
		Stride:      2,
		Seed:        1,
	}
}

func (c PlumeConfig) validate() error {
	var errs []error
	if c.Duration <= 0 || c.TimeStep <= 0 {
		errs = append(errs, errors.New("duration and time step must be positive"))
	}
	if c.Spread <= 0 {
		errs = append(errs, errors.New("spread must be positive"))
	}
	if c.Grid.Cells() == 0 || c.Grid.CellSize <= 0 {
		errs = append(errs, errors.New("grid is empty"))
	}
	return errors.Join(errs...)
}

// octaveNoise layers simplex noise over three octaves and returns a value in [0,1].
func octaveNoise(noise opensimplex.Noise, x, z, t float64) float64 {
	total, amplitude, maxVal, frequency := 0.0, 1.0, 0.0, 0.15
	for range 3 {
		total += noise.Eval3(x*frequency, z*frequency, t*0.05) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	return total / maxVal
}

// GeneratePlume samples the plume on the grid for every time step. Cells the smoke front has
// not reached yet are omitted.
func GeneratePlume(cfg PlumeConfig) ([]core.HazardSample, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	stride := max(cfg.Stride, 1)
	noise := opensimplex.NewNormalized(cfg.Seed)

	var out []core.HazardSample
	steps := int(cfg.Duration / cfg.TimeStep)
	for i := 0; i <= steps; i++ {
		t := float64(i) * cfg.TimeStep
		front := cfg.Spread * t
		if front <= 0 {
			continue
		}
		for ix := 0; ix < cfg.Grid.Width; ix += stride {
			for iz := 0; iz < cfg.Grid.Length; iz += stride {
				x := cfg.Grid.MinX + (float64(ix)+0.5)*cfg.Grid.CellSize
				z := cfg.Grid.MinZ + (float64(iz)+0.5)*cfg.Grid.CellSize
				d := math.Hypot(x-cfg.Source.X, z-cfg.Source.Z)
				if d > front {
					continue
				}
				// strongest at the source, thinning towards the front
				falloff := 1 - d/front
				n := 0.5 + 0.5*octaveNoise(noise, x, z, t)
				density := cfg.PeakDensity * falloff * n
				thermal := cfg.Ambient + (cfg.PeakThermal-cfg.Ambient)*falloff*falloff
				out = append(out, core.HazardSample{
					Time:       float32(t),
					X:          float32(x),
					Y:          float32(cfg.Height),
					Z:          float32(z),
					Density:    float32(density),
					Thermal:    float32(thermal),
					Visibility: float32(visibilityFor(density)),
				})
			}
		}
	}
	return out, nil
}

// visibilityFor maps density onto the 0.5..30.5 m visibility range.
func visibilityFor(density float64) float64 {
	k := math.Min(math.Max(density/650, 0), 1)
	return 30.5 - 30*k
}
