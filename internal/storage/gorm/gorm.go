// Package gormstorage implements the storage.Backend interface on GORM with internal queues and
// a background DB writer goroutine. The postgres and sqlite backends build on it.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/evacsim/internal/database"
	"github.com/OCAP2/evacsim/internal/geo"
	"github.com/OCAP2/evacsim/internal/model"
	"github.com/OCAP2/evacsim/internal/model/convert"
	"github.com/OCAP2/evacsim/internal/queue"
	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval is how often the writer drains the queues.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	Anchor        geo.Anchor
	Settings      any // stored as JSON on the run row
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Episodes *queue.Queue[model.Episode]
	Outcomes *queue.Queue[model.Outcome]
	Samples  *queue.Queue[model.PopulationSample]
}

func newQueues() *queues {
	return &queues{
		Episodes: queue.New[model.Episode](),
		Outcomes: queue.New[model.Outcome](),
		Samples:  queue.New[model.PopulationSample](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu    sync.RWMutex
	runID string

	// serializes flushes from the writer loop, EndRun and Close
	writeMu   sync.Mutex
	lastWrite atomic.Int64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps: deps,
	}
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// Without a DB the backend only queues, which the unit tests rely on.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		return nil
	}

	if err := database.Migrate(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.startDBWriters()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	b.wg.Wait()
	b.flush()
	return nil
}

// RunID returns the ID of the run being recorded.
func (b *Backend) RunID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.runID
}

// StartRun inserts the run row synchronously so queued rows can reference it.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	b.runID = run.ID
	b.mu.Unlock()

	if b.deps.DB == nil {
		return nil
	}
	row := convert.CoreToRun(*run, b.deps.Anchor, b.deps.Settings)
	if err := b.deps.DB.Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new run: %w", err)
	}
	b.deps.Logger.Info().Str("run", run.ID).Str("panicMode", run.PanicMode).Msg("Run recorded")
	return nil
}

// EndRun drains the queues and stores the aggregate report on the run row.
func (b *Backend) EndRun(report core.RunReport) error {
	if b.deps.DB == nil {
		return nil
	}
	b.flush()

	var row model.Run
	convert.ApplyReport(&row, report, time.Now())
	err := b.deps.DB.Model(&model.Run{}).
		Where("id = ?", b.RunID()).
		Select(convert.ReportColumns).
		Updates(&row).Error
	if err != nil {
		return fmt.Errorf("failed to update run report: %w", err)
	}
	return nil
}

// RecordOutcome converts an outcome to GORM and pushes it to the write queue.
func (b *Backend) RecordOutcome(o *core.Outcome) error {
	b.queues.Outcomes.Push(convert.OutcomeToGorm(b.RunID(), b.deps.Anchor, *o, time.Now()))
	return nil
}

// RecordSnapshot converts and queues a population sample.
func (b *Backend) RecordSnapshot(s *core.PopulationSnapshot) error {
	b.queues.Samples.Push(convert.SnapshotToGorm(b.RunID(), *s, time.Now()))
	return nil
}

// RecordEpisode converts and queues an episode summary.
func (b *Backend) RecordEpisode(e *core.EpisodeSummary) error {
	b.queues.Episodes.Push(convert.EpisodeToGorm(b.RunID(), *e, time.Now()))
	return nil
}

// GetLastDBWriteDuration returns the duration of the last write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// QueueLengths reports the pending rows per queue.
func (b *Backend) QueueLengths() map[string]int {
	if b.queues == nil {
		return nil
	}
	return map[string]int{
		"episodes": b.queues.Episodes.Len(),
		"outcomes": b.queues.Outcomes.Len(),
		"samples":  b.queues.Samples.Len(),
	}
}

// Outcomes reads back the outcomes recorded for a run, ordered by insertion.
func (b *Backend) Outcomes(runID string) ([]core.Outcome, error) {
	if b.deps.DB == nil {
		return nil, nil
	}
	var rows []model.Outcome
	err := b.deps.DB.
		Select("id", "episode", "occupant_id", "kind", "remaining_health", "elapsed_time", "state", "x", "y", "z").
		Where("run_id = ?", runID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes: %w", err)
	}
	out := make([]core.Outcome, len(rows))
	for i, r := range rows {
		out[i] = convert.GormToOutcome(r)
	}
	return out, nil
}

// Episodes reads back the episode summaries of a run.
func (b *Backend) Episodes(runID string) ([]core.EpisodeSummary, error) {
	if b.deps.DB == nil {
		return nil, nil
	}
	var rows []model.Episode
	err := b.deps.DB.
		Select("id", "run_id", "index", "duration", "total", "escaped", "dead", "health_sum", "timed_out").
		Where("run_id = ?", runID).
		Order(`"index"`).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read episodes: %w", err)
	}
	out := make([]core.EpisodeSummary, len(rows))
	for i, r := range rows {
		out[i] = convert.GormToEpisode(r)
	}
	return out, nil
}

// writeQueue writes all items from a queue to the database in a transaction. Failed batches go
// back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) int {
	if q.Empty() {
		return 0
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Int("count", len(items)).Msg("Error creating rows")
		tx.Rollback()
		q.Push(items...)
		return 0
	}

	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error committing rows")
		q.Push(items...)
		return 0
	}
	return len(items)
}

func (b *Backend) flush() {
	if b.deps.DB == nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	n := writeQueue(b.deps.DB, b.queues.Episodes, "episodes", b.deps.Logger)
	n += writeQueue(b.deps.DB, b.queues.Outcomes, "outcomes", b.deps.Logger)
	n += writeQueue(b.deps.DB, b.queues.Samples, "population samples", b.deps.Logger)
	if n > 0 {
		b.lastWrite.Store(int64(time.Since(start)))
		b.deps.Logger.Debug().Int("rows", n).Dur("duration", time.Since(start)).Msg("DB write cycle")
	}
}

// startDBWriters starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriters() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.flush()
			}
		}
	}()
}
