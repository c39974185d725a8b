// Package sqlitestorage records a run into an in-memory SQLite database and snapshots it to disk
// with VACUUM INTO, periodically and once more on Close. Rows go through the GORM backend.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/evacsim/internal/database"
	"github.com/OCAP2/evacsim/internal/geo"
	gormstorage "github.com/OCAP2/evacsim/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

type Config struct {
	DumpInterval time.Duration
	DumpPath     string // target of every VACUUM INTO; empty disables dumps
	Anchor       geo.Anchor
	Settings     any
}

// Backend is the GORM backend plus the dump schedule.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log zerolog.Logger

	stop      chan struct{}
	loop      sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New opens a fresh shared-cache in-memory database.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	return newWithDB(db, cfg, log), nil
}

func newWithDB(db *gorm.DB, cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:       db,
			Logger:   log,
			Anchor:   cfg.Anchor,
			Settings: cfg.Settings,
		}),
		db:   db,
		cfg:  cfg,
		log:  log,
		stop: make(chan struct{}),
	}
}

func (b *Backend) dumps() bool { return b.cfg.DumpPath != "" }

func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.dumps() && b.cfg.DumpInterval > 0 {
		b.loop.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the schedule, flushes pending rows and writes the final snapshot. Later calls
// return the first result.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		b.loop.Wait()

		if err := b.Backend.Close(); err != nil {
			b.closeErr = err
			return
		}
		if !b.dumps() {
			return
		}
		if err := b.dump(); err != nil {
			b.closeErr = fmt.Errorf("final dump: %w", err)
			return
		}
		b.log.Info().Str("path", b.cfg.DumpPath).Msg("SQLite database written")
	})
	return b.closeErr
}

// dump writes a point-in-time copy; writers keep running meanwhile.
func (b *Backend) dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
	return nil
}

func (b *Backend) dumpLoop() {
	defer b.loop.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}
