package hazard

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/OCAP2/evacsim/pkg/core"
)

// DefaultTimeStep is the sampling interval of the bundled smoke datasets, in seconds.
const DefaultTimeStep = 0.5

// Options control how samples are bucketed into frames.
type Options struct {
	Grid     Grid
	TimeStep float64
	// RenderThreshold enables render hints for samples whose density exceeds it.
	// Zero disables them and the samples are not retained.
	RenderThreshold float32
}

// DefaultOptions returns the grid and time step used by the bundled datasets.
func DefaultOptions() Options {
	return Options{Grid: DefaultGrid(), TimeStep: DefaultTimeStep}
}

// Dataset is an immutable time indexed set of frames. It is safe for concurrent readers.
type Dataset struct {
	grid     Grid
	step     float64
	frames   map[int64]*Frame
	keys     []int64
	samples  int
	dropped  int
	rendered bool
}

// Build groups samples into frames by quantized time and max-projects each (x,z) column.
// Nothing is returned when any sample is malformed.
func Build(samples []core.HazardSample, opts Options) (*Dataset, error) {
	if !opts.Grid.valid() {
		return nil, fmt.Errorf("invalid hazard grid %+v", opts.Grid)
	}
	if opts.TimeStep <= 0 {
		return nil, fmt.Errorf("invalid hazard time step %v", opts.TimeStep)
	}

	for i, s := range samples {
		if err := checkSample(i, s); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{
		grid:     opts.Grid,
		step:     opts.TimeStep,
		frames:   make(map[int64]*Frame),
		rendered: opts.RenderThreshold > 0,
	}

	for _, s := range samples {
		key := quantize(float64(s.Time), ds.step)
		f, ok := ds.frames[key]
		if !ok {
			f = newFrame(key, float32(float64(key)*ds.step), ds.grid, opts.RenderThreshold)
			ds.frames[key] = f
			ds.keys = append(ds.keys, key)
		}
		idx, inside := ds.grid.Index(float64(s.X), float64(s.Z))
		if !inside {
			ds.dropped++
			continue
		}
		f.project(idx, s)
		ds.samples++
	}

	slices.Sort(ds.keys)
	return ds, nil
}

func checkSample(i int, s core.HazardSample) error {
	fields := [...]struct {
		name string
		v    float32
	}{
		{"time", s.Time}, {"x", s.X}, {"y", s.Y}, {"z", s.Z},
		{"density", s.Density}, {"thermal", s.Thermal}, {"visibility", s.Visibility},
	}
	for _, f := range fields {
		v := float64(f.v)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &DataFormatError{Index: i, Field: f.name, Reason: "non-finite value"}
		}
	}
	return nil
}

func quantize(t, step float64) int64 {
	return int64(math.Round(t / step))
}

// Grid returns the grid shared by every frame.
func (d *Dataset) Grid() Grid { return d.grid }

// TimeStep returns the quantization step in seconds.
func (d *Dataset) TimeStep() float64 { return d.step }

// Len returns the number of frames.
func (d *Dataset) Len() int { return len(d.keys) }

// Samples returns how many samples landed inside the grid.
func (d *Dataset) Samples() int { return d.samples }

// Dropped returns how many samples fell outside the grid.
func (d *Dataset) Dropped() int { return d.dropped }

// Keys returns the sorted time keys. The slice must not be modified.
func (d *Dataset) Keys() []int64 { return d.keys }

// Duration is the time covered between the first and the last frame.
func (d *Dataset) Duration() float64 {
	if len(d.keys) == 0 {
		return 0
	}
	return float64(d.keys[len(d.keys)-1]-d.keys[0]) * d.step
}

// Frame returns the frame stored under key, if any.
func (d *Dataset) Frame(key int64) (*Frame, bool) {
	f, ok := d.frames[key]
	return f, ok
}

// Quantize maps a data time onto its time key.
func (d *Dataset) Quantize(t float64) int64 {
	return quantize(t, d.step)
}

// KeyTime returns the data time of a key.
func (d *Dataset) KeyTime(key int64) float64 {
	return float64(key) * d.step
}

// resolve picks the frame used for key: the first frame below the domain, the last frame
// above it, and the closest earlier frame when the dataset has a gap.
func (d *Dataset) resolve(key int64) (int64, *Frame) {
	if len(d.keys) == 0 {
		return 0, nil
	}
	first, last := d.keys[0], d.keys[len(d.keys)-1]
	switch {
	case key <= first:
		return first, d.frames[first]
	case key >= last:
		return last, d.frames[last]
	}
	if f, ok := d.frames[key]; ok {
		return key, f
	}
	i := sort.Search(len(d.keys), func(i int) bool { return d.keys[i] > key })
	k := d.keys[i-1]
	return k, d.frames[k]
}

// NewEngine returns a query engine with its own last-frame cache. Engines are not safe for
// concurrent use; give every occupant its own.
func (d *Dataset) NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{ds: d, scale: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasRenderHints reports whether frames retained samples for render hints.
func (d *Dataset) HasRenderHints() bool { return d.rendered }
