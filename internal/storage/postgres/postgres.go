// Package postgres implements the storage.Backend interface on PostgreSQL/PostGIS. The
// connection comes from the database manager, which falls back to a local SQLite database when
// Postgres is unreachable; queued writes go through the shared GORM backend.
package postgres

import (
	"fmt"

	"github.com/OCAP2/evacsim/internal/database"
	"github.com/OCAP2/evacsim/internal/geo"
	gormstorage "github.com/OCAP2/evacsim/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	Manager  *database.Manager
	Logger   zerolog.Logger
	Anchor   geo.Anchor
	Settings any

	// FallbackPath receives a dump of the local SQLite database on Close when Postgres was
	// unreachable.
	FallbackPath string
}

// Backend implements storage.Backend on the manager's connection.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend. The connection is opened in Init.
func New(deps Dependencies) *Backend {
	if deps.Manager == nil {
		deps.Manager = database.NewManager(deps.Logger)
	}
	return &Backend{deps: deps}
}

// Init connects, migrates and starts the writer goroutine.
func (b *Backend) Init() error {
	m := b.deps.Manager
	if err := m.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if m.ShouldSaveLocal {
		m.SqliteFilePath = b.deps.FallbackPath
		b.deps.Logger.Warn().Str("fallback", m.SqliteFilePath).Msg("Postgres unavailable, recording to local SQLite")
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:       m.DB,
		Logger:   b.deps.Logger,
		Anchor:   b.deps.Anchor,
		Settings: b.deps.Settings,
	})
	return b.Backend.Init()
}

// Close flushes pending rows and closes the connection.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	m := b.deps.Manager
	if m.ShouldSaveLocal && m.SqliteFilePath != "" {
		if err := m.DumpMemoryToDisk(); err != nil {
			b.deps.Logger.Error().Err(err).Msg("Failed to save local fallback database")
		}
	}
	if m.SqlDB != nil {
		return m.SqlDB.Close()
	}
	return nil
}

// Local reports whether the backend fell back to SQLite.
func (b *Backend) Local() bool { return b.deps.Manager.ShouldSaveLocal }
