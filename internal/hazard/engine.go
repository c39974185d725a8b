package hazard

import "github.com/OCAP2/evacsim/pkg/core"

// Field answers hazard queries. Engine is the production implementation.
type Field interface {
	Query(pos core.Vec3, simTime float64) core.HazardReading
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTimeScale stretches the dataset over targetRunDuration seconds of simulation. The ratio
// dataDuration/targetRunDuration is applied to the simulation time before quantization.
func WithTimeScale(dataDuration, targetRunDuration float64) EngineOption {
	return func(e *Engine) {
		if dataDuration > 0 && targetRunDuration > 0 {
			e.scale = dataDuration / targetRunDuration
		}
	}
}

// Engine maps (position, simulation time) to a hazard reading and remembers the last frame it
// resolved.
type Engine struct {
	ds    *Dataset
	scale float64

	cached    bool
	cachedKey int64
	cachedF   *Frame
}

// Dataset returns the dataset behind the engine.
func (e *Engine) Dataset() *Dataset { return e.ds }

// Scale returns the time scale ratio applied to simulation time.
func (e *Engine) Scale() float64 { return e.scale }

// Key returns the time key a simulation time resolves to.
func (e *Engine) Key(simTime float64) int64 {
	return e.ds.Quantize(simTime * e.scale)
}

// Query returns the reading at pos for simTime. Positions outside the grid and empty cells
// answer a zero reading; times beyond the data hold the last frame.
func (e *Engine) Query(pos core.Vec3, simTime float64) core.HazardReading {
	return e.QueryAt(pos, e.Key(simTime))
}

// QueryAt answers for an already quantized time key.
func (e *Engine) QueryAt(pos core.Vec3, key int64) core.HazardReading {
	_, f := e.frame(key)
	if f == nil {
		return core.HazardReading{}
	}
	r, _ := f.At(pos.X, pos.Z)
	return r
}

func (e *Engine) frame(key int64) (int64, *Frame) {
	if e.cached && e.cachedKey == key {
		return key, e.cachedF
	}
	_, f := e.ds.resolve(key)
	if f == nil {
		return key, nil
	}
	e.cached, e.cachedKey, e.cachedF = true, key, f
	return key, f
}
