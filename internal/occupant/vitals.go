package occupant

import (
	"math"

	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/pkg/core"
)

// Vitals is the physiological state of one occupant. Health drains every tick; panic and
// vision range only change on the panic cadence.
type Vitals struct {
	Health      float64
	Panic       float64
	DamageRate  float64
	VisionRange int

	cfg        tuning.Vitals
	panicClock float64
}

func NewVitals(cfg tuning.Vitals) Vitals {
	return Vitals{
		Health:      cfg.MaxHealth,
		VisionRange: clampInt(cfg.VisionBase, cfg.VisionMin, cfg.VisionMax),
		cfg:         cfg,
	}
}

// Decay applies one tick of hazard damage.
func (v *Vitals) Decay(r core.HazardReading, dt float64) {
	v.DamageRate = DamageRate(v.cfg, r)
	v.Health -= v.DamageRate * dt
}

// UpdatePanic advances the panic clock and recomputes panic and vision range when a full
// interval has elapsed. It reports whether a recompute happened.
func (v *Vitals) UpdatePanic(r core.HazardReading, dt float64) bool {
	v.panicClock += dt
	if v.panicClock < v.cfg.PanicInterval {
		return false
	}
	v.panicClock = 0
	v.Panic = PanicLevel(v.cfg, r)
	v.VisionRange = VisionLimit(v.cfg, float64(r.Visibility))
	return true
}

func (v *Vitals) Dead() bool { return v.Health <= 0 }

// DamageRate is health lost per second at the given reading.
func DamageRate(cfg tuning.Vitals, r core.HazardReading) float64 {
	co := core.InverseLerp(cfg.DamageCOMin, cfg.DamageCOMax, float64(r.Density))
	temp := core.InverseLerp(cfg.DamageTempMin, cfg.DamageTempMax, float64(r.Thermal))
	return cfg.BaseDamage + co*cfg.COMultiplier + temp*cfg.TempMultiplier
}

// PanicLevel weights CO, temperature and the lack of visibility into [0,1].
func PanicLevel(cfg tuning.Vitals, r core.HazardReading) float64 {
	co := core.InverseLerp(cfg.PanicCOSafe, cfg.PanicCODanger, float64(r.Density))
	temp := core.InverseLerp(cfg.PanicTempSafe, cfg.PanicTempDanger, float64(r.Thermal))
	vis := 1 - core.InverseLerp(cfg.PanicVisDanger, cfg.PanicVisSafe, float64(r.Visibility))
	return core.Clamp01(co*cfg.WeightCO + temp*cfg.WeightTemp + vis*cfg.WeightVis)
}

// VisionLimit converts visibility in meters into the scan range.
func VisionLimit(cfg tuning.Vitals, visibility float64) int {
	if math.IsNaN(visibility) || cfg.VisionDivisor == 0 {
		return clampInt(cfg.VisionBase, cfg.VisionMin, cfg.VisionMax)
	}
	return clampInt(int(visibility/cfg.VisionDivisor)+cfg.VisionBase, cfg.VisionMin, cfg.VisionMax)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
