// pkg/core/outcome.go
package core

import "time"

// OutcomeKind separates the two terminal occupant transitions.
type OutcomeKind uint8

const (
	OutcomeDeath OutcomeKind = iota + 1
	OutcomeEscape
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDeath:
		return "death"
	case OutcomeEscape:
		return "escape"
	default:
		return "unknown"
	}
}

// Outcome is emitted exactly once per occupant when it dies or escapes.
type Outcome struct {
	Kind            OutcomeKind   `json:"kind"`
	OccupantID      EntityID      `json:"occupantId"`
	RemainingHealth float32       `json:"remainingHealth"`
	ElapsedTime     float64       `json:"elapsedTime"` // simulated seconds since episode start
	Episode         int           `json:"episode"`
	State           BehaviorState `json:"state"`
	Position        Vec3          `json:"position"`
	Trail           []Vec3        `json:"trail,omitempty"`
}

// PopulationSnapshot aggregates the occupant population at one tick.
type PopulationSnapshot struct {
	Episode   int     `json:"episode"`
	SimTime   float64 `json:"simTime"`
	Alive     int     `json:"alive"`
	Escaped   int     `json:"escaped"`
	Dead      int     `json:"dead"`
	Calm      int     `json:"calm"`
	Anxious   int     `json:"anxious"`
	Panicked  int     `json:"panicked"`
	Followers int     `json:"followers"`
	AvgHealth float64 `json:"avgHealth"`
	AvgPanic  float64 `json:"avgPanic"`
}

// EpisodeSummary is written when an episode ends.
type EpisodeSummary struct {
	ID        string  `json:"id"`
	Index     int     `json:"index"`
	Duration  float64 `json:"duration"`
	Total     int     `json:"total"`
	Escaped   int     `json:"escaped"`
	Dead      int     `json:"dead"`
	HealthSum float64 `json:"healthSum"`
	TimedOut  bool    `json:"timedOut"`
}

// Run describes one simulation process lifetime.
type Run struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"startTime"`
	PanicMode   string    `json:"panicMode"`
	DatasetPath string    `json:"datasetPath"`
	Occupants   int       `json:"occupants"`
	Agents      int       `json:"agents"`
	Tag         string    `json:"tag"`
}

// RunReport is the aggregate over every finished episode.
type RunReport struct {
	PanicMode     string  `json:"panicMode"`
	TotalEpisodes int     `json:"totalEpisodes"`
	SuccessRate   float64 `json:"successRate"` // percent
	AvgTime       float64 `json:"avgTime"`
	AvgHealth     float64 `json:"avgHealth"`
}

// UploadMetadata accompanies a results file sent to the results server.
type UploadMetadata struct {
	RunID       string
	PanicMode   string
	Episodes    int
	SuccessRate float64
	Tag         string
}
