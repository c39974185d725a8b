package hazard

import (
	"sync"

	"github.com/OCAP2/evacsim/pkg/core"
)

type cell struct {
	reading core.HazardReading
	set     bool
}

// Frame is one time slice of the dataset: the max-projected floor grid and, when enabled,
// the samples needed to build render hints.
type Frame struct {
	Key  int64
	Time float32

	grid  Grid
	cells []cell

	renderThreshold float32
	renderSamples   []core.HazardSample
	hintsOnce       sync.Once
	hints           []RenderHint
}

func newFrame(key int64, t float32, g Grid, renderThreshold float32) *Frame {
	return &Frame{
		Key:             key,
		Time:            t,
		grid:            g,
		cells:           make([]cell, g.Cells()),
		renderThreshold: renderThreshold,
	}
}

// project folds s into the cell. Density keeps the first maximum seen; thermal and visibility
// also never drop below any contributing sample.
func (f *Frame) project(idx int, s core.HazardSample) {
	c := &f.cells[idx]
	if !c.set {
		c.set = true
		c.reading = core.HazardReading{Density: s.Density, Thermal: s.Thermal, Visibility: s.Visibility}
	} else {
		if s.Density > c.reading.Density {
			c.reading.Density = s.Density
		}
		if s.Thermal > c.reading.Thermal {
			c.reading.Thermal = s.Thermal
		}
		if s.Visibility > c.reading.Visibility {
			c.reading.Visibility = s.Visibility
		}
	}
	if f.renderThreshold > 0 && s.Density > f.renderThreshold {
		f.renderSamples = append(f.renderSamples, s)
	}
}

// At returns the stored reading for a floor position and whether the cell holds data.
func (f *Frame) At(x, z float64) (core.HazardReading, bool) {
	idx, ok := f.grid.Index(x, z)
	if !ok {
		return core.HazardReading{}, false
	}
	c := f.cells[idx]
	return c.reading, c.set
}

// Cell returns the reading stored at a cell index.
func (f *Frame) Cell(idx int) (core.HazardReading, bool) {
	if idx < 0 || idx >= len(f.cells) {
		return core.HazardReading{}, false
	}
	return f.cells[idx].reading, f.cells[idx].set
}
