package sim

import (
	"errors"
	"time"
)

// Topics published on the dispatcher.
const (
	TopicOutcome  = "outcome"
	TopicSnapshot = "snapshot"
	TopicEpisode  = "episode"
)

// DefaultEpisodeTimeout ends an episode that still has occupants inside.
const DefaultEpisodeTimeout = 150.0

// Config holds the run parameters that are not behavior tuning.
type Config struct {
	Dt             float64 // simulated seconds per step
	EpisodeTimeout float64
	Episodes       int
	Occupants      int // 0 takes the layout's population
	Workers        int // bound for the parallel hazard phase
	TargetDuration float64
	SnapshotEvery  float64
	Seed           int64
	PanicMode      string
	// Pace slows the loop to Pace simulated seconds per wall second. 0 runs unthrottled.
	Pace float64
}

func DefaultConfig() Config {
	return Config{
		Dt:             0.02,
		EpisodeTimeout: DefaultEpisodeTimeout,
		Episodes:       1,
		Workers:        8,
		SnapshotEvery:  1,
		Seed:           time.Now().UnixNano(),
		PanicMode:      "dynamic",
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Dt <= 0 {
		errs = append(errs, errors.New("dt must be positive"))
	}
	if c.EpisodeTimeout <= 0 {
		errs = append(errs, errors.New("episode timeout must be positive"))
	}
	if c.Episodes < 1 {
		errs = append(errs, errors.New("at least one episode is required"))
	}
	if c.Occupants < 0 {
		errs = append(errs, errors.New("occupants must not be negative"))
	}
	return errors.Join(errs...)
}
