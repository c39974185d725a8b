// Package v1 contains the v1 export format for evacuation runs.
package v1

// FormatVersion is written into every export.
const FormatVersion = "1"

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion string    `json:"formatVersion"`
	RunID         string    `json:"runId"`
	StartTime     string    `json:"startTime"`
	PanicMode     string    `json:"panicMode"`
	DatasetPath   string    `json:"datasetPath"`
	Occupants     int       `json:"occupants"`
	Agents        int       `json:"agents"`
	Tag           string    `json:"tag"`
	Report        *Report   `json:"report,omitempty"`
	Episodes      []Episode `json:"episodes"`
	Population    [][]any   `json:"population"`
}

// Report is the aggregate written when the run ends
type Report struct {
	TotalEpisodes int     `json:"totalEpisodes"`
	SuccessRate   float64 `json:"successRate"`
	AvgTime       float64 `json:"avgTime"`
	AvgHealth     float64 `json:"avgHealth"`
}

// Episode is one episode summary with the outcomes booked during it
type Episode struct {
	ID        string  `json:"id"`
	Index     int     `json:"index"`
	Duration  float64 `json:"duration"`
	Total     int     `json:"total"`
	Escaped   int     `json:"escaped"`
	Dead      int     `json:"dead"`
	HealthSum float64 `json:"healthSum"`
	TimedOut  bool    `json:"timedOut"`
	// Format: [occupantId, kind, elapsedTime, remainingHealth, state, [x, y, z], trail]
	Outcomes [][]any `json:"outcomes"`
}
