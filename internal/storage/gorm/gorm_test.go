package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/evacsim/internal/database"
	"github.com/OCAP2/evacsim/internal/geo"
	"github.com/OCAP2/evacsim/internal/model"
	"github.com/OCAP2/evacsim/internal/storage"
	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{Logger: zerolog.Nop()})
}

// newDBBackend creates a Backend on a file-backed SQLite database in a temp dir.
func newDBBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "evac.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	b := New(Dependencies{
		DB:            db,
		Logger:        zerolog.Nop(),
		Anchor:        geo.Anchor{Longitude: 13.4, Latitude: 52.5},
		Settings:      map[string]any{"episodes": 2},
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestNew_DefaultFlushInterval(t *testing.T) {
	b := newTestBackend()
	require.NotNil(t, b)
	assert.Equal(t, DefaultFlushInterval, b.deps.FlushInterval)
	assert.Nil(t, b.DB())
}

func TestInitClose(t *testing.T) {
	b := newTestBackend()

	err := b.Init()
	require.NoError(t, err)
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")
}

func TestRecord_QueuesToInternalQueues(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(&core.Run{ID: "run-q"}))
	require.NoError(t, b.RecordOutcome(&core.Outcome{Kind: core.OutcomeEscape, OccupantID: 4}))
	require.NoError(t, b.RecordSnapshot(&core.PopulationSnapshot{Episode: 1, Alive: 3}))
	require.NoError(t, b.RecordEpisode(&core.EpisodeSummary{ID: "ep", Index: 1}))

	assert.Equal(t, map[string]int{"episodes": 1, "outcomes": 1, "samples": 1}, b.QueueLengths())
	last, ok := b.queues.Outcomes.Last()
	require.True(t, ok)
	assert.Equal(t, "run-q", last.RunID)
	assert.Equal(t, "escape", last.Kind)
}

func TestEndRun_NoDB(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()
	assert.NoError(t, b.EndRun(core.RunReport{TotalEpisodes: 1}))
	outcomes, err := b.Outcomes("x")
	assert.NoError(t, err)
	assert.Nil(t, outcomes)
}

func TestRunLifecycle_WritesRows(t *testing.T) {
	b := newDBBackend(t)

	run := &core.Run{ID: "run-1", StartTime: time.Now().UTC(), PanicMode: "calm", Occupants: 2}
	require.NoError(t, b.StartRun(run))
	assert.Equal(t, "run-1", b.RunID())

	require.NoError(t, b.RecordOutcome(&core.Outcome{
		Kind:            core.OutcomeEscape,
		OccupantID:      1,
		RemainingHealth: 80,
		ElapsedTime:     12,
		Episode:         1,
		State:           core.Calm,
		Position:        core.Vec3{X: 3, Z: 4},
		Trail:           []core.Vec3{{}, {X: 3, Z: 4}},
	}))
	require.NoError(t, b.RecordOutcome(&core.Outcome{
		Kind:       core.OutcomeDeath,
		OccupantID: 2,
		Episode:    1,
		State:      core.Panicked,
	}))
	require.NoError(t, b.RecordSnapshot(&core.PopulationSnapshot{Episode: 1, SimTime: 1, Alive: 2}))
	require.NoError(t, b.RecordEpisode(&core.EpisodeSummary{ID: "ep-1", Index: 1, Total: 2, Escaped: 1, Dead: 1, HealthSum: 80}))

	report := core.RunReport{PanicMode: "calm", TotalEpisodes: 1, SuccessRate: 50, AvgTime: 12, AvgHealth: 40}
	require.NoError(t, b.EndRun(report))
	assert.Equal(t, map[string]int{"episodes": 0, "outcomes": 0, "samples": 0}, b.QueueLengths())
	assert.GreaterOrEqual(t, b.GetLastDBWriteDuration(), time.Duration(0))

	outcomes, err := b.Outcomes("run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, core.OutcomeEscape, outcomes[0].Kind)
	assert.Equal(t, float32(80), outcomes[0].RemainingHealth)
	assert.Equal(t, core.Vec3{X: 3, Z: 4}, outcomes[0].Position)
	assert.Equal(t, core.OutcomeDeath, outcomes[1].Kind)
	assert.Equal(t, core.Panicked, outcomes[1].State)

	episodes, err := b.Episodes("run-1")
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, 80.0, episodes[0].HealthSum)

	var ended int64
	require.NoError(t, b.DB().Model(&model.Run{}).Where("id = ? AND end_time IS NOT NULL", "run-1").Count(&ended).Error)
	assert.Equal(t, int64(1), ended)

	var row model.Run
	require.NoError(t, b.DB().Select("id", "total_episodes", "success_rate", "avg_time", "avg_health").
		First(&row, "id = ?", "run-1").Error)
	assert.Equal(t, 1, row.TotalEpisodes)
	assert.Equal(t, 50.0, row.SuccessRate)
	assert.Equal(t, 40.0, row.AvgHealth)

	var samples int64
	require.NoError(t, b.DB().Model(&model.PopulationSample{}).Where("run_id = ?", "run-1").Count(&samples).Error)
	assert.Equal(t, int64(1), samples)
}

func TestClose_FlushesPendingRows(t *testing.T) {
	b := newDBBackend(t)
	require.NoError(t, b.StartRun(&core.Run{ID: "run-2", StartTime: time.Now().UTC()}))
	require.NoError(t, b.RecordEpisode(&core.EpisodeSummary{ID: "ep-2", Index: 1}))

	require.NoError(t, b.Close())

	var n int64
	require.NoError(t, b.DB().Model(&model.Episode{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
