// Package tuning holds the behavior thresholds. The solver exports this project was tuned
// against disagree on CO and temperature bounds, so every constant is read from tuning.yaml
// and the defaults below are only a starting point.
package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Vitals   Vitals   `yaml:"vitals"`
	Behavior Behavior `yaml:"behavior"`
	Movement Movement `yaml:"movement"`
	Vision   Vision   `yaml:"vision"`
	Rescue   Rescue   `yaml:"rescue"`
	Decision Decision `yaml:"decision"`
}

type Vitals struct {
	MaxHealth float64 `yaml:"max_health"`

	BaseDamage     float64 `yaml:"base_damage"`
	COMultiplier   float64 `yaml:"co_multiplier"`
	TempMultiplier float64 `yaml:"temp_multiplier"`
	DamageCOMin    float64 `yaml:"damage_co_min"`
	DamageCOMax    float64 `yaml:"damage_co_max"`
	DamageTempMin  float64 `yaml:"damage_temp_min"`
	DamageTempMax  float64 `yaml:"damage_temp_max"`

	PanicInterval   float64 `yaml:"panic_interval"`
	PanicCOSafe     float64 `yaml:"panic_co_safe"`
	PanicCODanger   float64 `yaml:"panic_co_danger"`
	PanicTempSafe   float64 `yaml:"panic_temp_safe"`
	PanicTempDanger float64 `yaml:"panic_temp_danger"`
	PanicVisDanger  float64 `yaml:"panic_vis_danger"`
	PanicVisSafe    float64 `yaml:"panic_vis_safe"`
	WeightCO        float64 `yaml:"weight_co"`
	WeightTemp      float64 `yaml:"weight_temp"`
	WeightVis       float64 `yaml:"weight_vis"`

	VisionDivisor float64 `yaml:"vision_divisor"`
	VisionBase    int     `yaml:"vision_base"`
	VisionMin     int     `yaml:"vision_min"`
	VisionMax     int     `yaml:"vision_max"`
}

type Behavior struct {
	AnxiousAt     float64 `yaml:"anxious_at"`
	PanickedAbove float64 `yaml:"panicked_above"`
	MinDwell      float64 `yaml:"min_dwell"`
	// InitialDwell is credited to a freshly spawned occupant so the first transition
	// does not wait a full MinDwell.
	InitialDwell float64 `yaml:"initial_dwell"`
}

type Movement struct {
	CalmSpeed     float64 `yaml:"calm_speed"`
	AnxiousSpeed  float64 `yaml:"anxious_speed"`
	PanickedSpeed float64 `yaml:"panicked_speed"`

	ArriveRadius   float64 `yaml:"arrive_radius"`
	RetargetRadius float64 `yaml:"retarget_radius"`
	DoorCrossing   float64 `yaml:"door_crossing"`
	FollowOffset   float64 `yaml:"follow_offset"`
	ExitRadius     float64 `yaml:"exit_radius"`
	StuckLimit     int     `yaml:"stuck_limit"`

	PanicJitterRadius  float64 `yaml:"panic_jitter_radius"`
	PanicSnapRadius    float64 `yaml:"panic_snap_radius"`
	PanicRetargetEvery float64 `yaml:"panic_retarget_every"`
	WalkRadius         float64 `yaml:"walk_radius"`
	KeepHeadingChance  float64 `yaml:"keep_heading_chance"`
	HeadingJitterDeg   float64 `yaml:"heading_jitter_deg"`
	SafeFallbackMin    float64 `yaml:"safe_fallback_min"`
	LocalOffset        float64 `yaml:"local_offset"`
}

type Vision struct {
	FieldOfView float64 `yaml:"field_of_view"`
	Step        float64 `yaml:"step"`
	DoorLayer   string  `yaml:"door_layer"`
	AgentLayer  string  `yaml:"agent_layer"`
}

type Rescue struct {
	Speed          float64 `yaml:"speed"`
	ContactRadius  float64 `yaml:"contact_radius"`
	ResistDuration float64 `yaml:"resist_duration"`
	PushSpeed      float64 `yaml:"push_speed"`
	FollowRadius   float64 `yaml:"follow_radius"`
	ContactStep    float64 `yaml:"contact_step"`
}

type Decision struct {
	Interval float64 `yaml:"interval"`
}

// Default returns the thresholds of the reference smoke scenario.
func Default() Tuning {
	return Tuning{
		Vitals: Vitals{
			MaxHealth:       100,
			BaseDamage:      0.8,
			COMultiplier:    5,
			TempMultiplier:  3,
			DamageCOMin:     0,
			DamageCOMax:     650,
			DamageTempMin:   20,
			DamageTempMax:   820,
			PanicInterval:   0.5,
			PanicCOSafe:     65,
			PanicCODanger:   650,
			PanicTempSafe:   20,
			PanicTempDanger: 820,
			PanicVisDanger:  0.5,
			PanicVisSafe:    30.5,
			WeightCO:        0.4,
			WeightTemp:      0.3,
			WeightVis:       0.3,
			VisionDivisor:   3,
			VisionBase:      10,
			VisionMin:       5,
			VisionMax:       50,
		},
		Behavior: Behavior{
			AnxiousAt:     0.3,
			PanickedAbove: 0.6,
			MinDwell:      5,
			InitialDwell:  4,
		},
		Movement: Movement{
			CalmSpeed:          4,
			AnxiousSpeed:       6,
			PanickedSpeed:      7,
			ArriveRadius:       1.5,
			RetargetRadius:     0.5,
			DoorCrossing:       1.5,
			FollowOffset:       1,
			ExitRadius:         1,
			StuckLimit:         5,
			PanicJitterRadius:  2.5,
			PanicSnapRadius:    3,
			PanicRetargetEvery: 1,
			WalkRadius:         5,
			KeepHeadingChance:  0.7,
			HeadingJitterDeg:   30,
			SafeFallbackMin:    2,
			LocalOffset:        1,
		},
		Vision: Vision{
			FieldOfView: 360,
			Step:        20,
			DoorLayer:   "default",
			AgentLayer:  "follower",
		},
		Rescue: Rescue{
			Speed:          3.5,
			ContactRadius:  3,
			ResistDuration: 2,
			PushSpeed:      3,
			FollowRadius:   2,
			ContactStep:    3,
		},
		Decision: Decision{
			Interval: 1,
		},
	}
}

// Load reads path over the defaults; keys missing from the file keep their default value.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate rejects threshold sets the state machine cannot work with.
func (t Tuning) Validate() error {
	var errs []error
	if t.Behavior.AnxiousAt < 0 || t.Behavior.PanickedAbove > 1 || t.Behavior.AnxiousAt > t.Behavior.PanickedAbove {
		errs = append(errs, fmt.Errorf("behavior thresholds out of order: anxious_at=%v panicked_above=%v",
			t.Behavior.AnxiousAt, t.Behavior.PanickedAbove))
	}
	if t.Behavior.MinDwell < 0 {
		errs = append(errs, errors.New("min_dwell must not be negative"))
	}
	if t.Vitals.PanicInterval <= 0 {
		errs = append(errs, errors.New("panic_interval must be positive"))
	}
	if t.Vision.Step <= 0 || t.Vision.FieldOfView <= 0 {
		errs = append(errs, errors.New("vision field_of_view and step must be positive"))
	}
	if t.Vitals.VisionMin > t.Vitals.VisionMax {
		errs = append(errs, errors.New("vision_min exceeds vision_max"))
	}
	if t.Decision.Interval <= 0 {
		errs = append(errs, errors.New("decision interval must be positive"))
	}
	return errors.Join(errs...)
}
