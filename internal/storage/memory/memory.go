// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/OCAP2/evacsim/internal/config"
	"github.com/OCAP2/evacsim/pkg/core"
)

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg    config.MemoryConfig
	run    *core.Run
	report *core.RunReport

	episodes   []core.EpisodeSummary
	outcomes   map[int][]core.Outcome // keyed by episode index
	population []core.PopulationSnapshot

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		outcomes: make(map[int][]core.Outcome),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.report = nil

	// Reset all collections
	b.episodes = nil
	b.outcomes = make(map[int][]core.Outcome)
	b.population = nil
	b.lastExportPath = ""

	return nil
}

// EndRun stores the report and exports the run data
func (b *Backend) EndRun(report core.RunReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.report = &report
	return b.exportJSON()
}

// RecordOutcome stores a death or escape under its episode
func (b *Backend) RecordOutcome(o *core.Outcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes[o.Episode] = append(b.outcomes[o.Episode], *o)
	return nil
}

// RecordSnapshot stores a population snapshot
func (b *Backend) RecordSnapshot(s *core.PopulationSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.population = append(b.population, *s)
	return nil
}

// RecordEpisode stores an episode summary
func (b *Backend) RecordEpisode(e *core.EpisodeSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.episodes = append(b.episodes, *e)
	return nil
}

// Outcomes returns a copy of the outcomes recorded for an episode
func (b *Backend) Outcomes(episode int) []core.Outcome {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]core.Outcome(nil), b.outcomes[episode]...)
}

// Episodes returns a copy of the recorded episode summaries
func (b *Backend) Episodes() []core.EpisodeSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]core.EpisodeSummary(nil), b.episodes...)
}

// GetExportedFilePath returns the path of the last export, empty before EndRun.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for the results server.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var meta core.UploadMetadata
	if b.run != nil {
		meta.RunID = b.run.ID
		meta.PanicMode = b.run.PanicMode
		meta.Tag = b.run.Tag
	}
	if b.report != nil {
		meta.Episodes = b.report.TotalEpisodes
		meta.SuccessRate = b.report.SuccessRate
	}
	return meta
}
