// internal/storage/storage.go
package storage

import "github.com/OCAP2/evacsim/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun(report core.RunReport) error

	// Event recording
	RecordOutcome(o *core.Outcome) error
	RecordSnapshot(s *core.PopulationSnapshot) error
	RecordEpisode(e *core.EpisodeSummary) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the results server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
