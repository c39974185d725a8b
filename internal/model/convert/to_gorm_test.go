package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/evacsim/internal/geo"
	"github.com/OCAP2/evacsim/internal/model"
	"github.com/OCAP2/evacsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAnchor = geo.Anchor{Longitude: 13.4, Latitude: 52.5, Elevation: 34}

func TestCoreToRun(t *testing.T) {
	start := time.Date(2026, 3, 7, 9, 5, 0, 0, time.UTC)
	run := CoreToRun(core.Run{
		ID:          "run-1",
		StartTime:   start,
		PanicMode:   "dynamic",
		DatasetPath: "fire.bin",
		Occupants:   30,
		Agents:      2,
		Tag:         "Drill",
	}, testAnchor, map[string]any{"dt": 0.02})

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, start, run.StartTime)
	assert.Equal(t, "dynamic", run.PanicMode)
	assert.Equal(t, 30, run.Occupants)
	assert.Equal(t, 2, run.Agents)
	assert.False(t, run.EndTime.Valid)

	var cfg map[string]float64
	require.NoError(t, json.Unmarshal(run.Config, &cfg))
	assert.Equal(t, 0.02, cfg["dt"])

	c, ok := run.Location.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 34.0, c.Z)
}

func TestCoreToRun_BadConfig(t *testing.T) {
	run := CoreToRun(core.Run{ID: "x"}, testAnchor, func() {})
	assert.JSONEq(t, "{}", string(run.Config))

	run = CoreToRun(core.Run{ID: "x"}, testAnchor, nil)
	assert.JSONEq(t, "{}", string(run.Config))
}

func TestApplyReport(t *testing.T) {
	var run model.Run
	end := time.Now()
	ApplyReport(&run, core.RunReport{TotalEpisodes: 10, SuccessRate: 62.5, AvgTime: 87.1, AvgHealth: 41}, end)

	assert.True(t, run.EndTime.Valid)
	assert.Equal(t, end, run.EndTime.Time)
	assert.Equal(t, 10, run.TotalEpisodes)
	assert.Equal(t, 62.5, run.SuccessRate)
	assert.Equal(t, 87.1, run.AvgTime)
	assert.Equal(t, 41.0, run.AvgHealth)
	assert.Len(t, ReportColumns, 5)
}

func TestOutcomeToGorm(t *testing.T) {
	now := time.Now()
	out := OutcomeToGorm("run-1", testAnchor, core.Outcome{
		Kind:            core.OutcomeEscape,
		OccupantID:      7,
		RemainingHealth: 55.5,
		ElapsedTime:     42,
		Episode:         3,
		State:           core.Anxious,
		Position:        core.Vec3{X: 1, Y: 0, Z: 2},
		Trail:           []core.Vec3{{X: 0, Z: 0}, {X: 1, Z: 2}},
	}, now)

	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "escape", out.Kind)
	assert.Equal(t, "anxious", out.State)
	assert.Equal(t, uint32(7), out.OccupantID)
	assert.Equal(t, float32(55.5), out.RemainingHealth)
	assert.Equal(t, 3, out.Episode)
	assert.Equal(t, 1.0, out.X)
	assert.Equal(t, 2.0, out.Z)
	assert.Equal(t, geom.TypeLineString, out.Trail.Type())
	assert.False(t, out.Trail.IsEmpty())
	assert.False(t, out.Location.IsEmpty())
}

func TestOutcomeToGorm_ShortTrail(t *testing.T) {
	out := OutcomeToGorm("run-1", testAnchor, core.Outcome{Kind: core.OutcomeDeath, Trail: []core.Vec3{{}}}, time.Now())
	assert.Equal(t, "death", out.Kind)
	assert.True(t, out.Trail.IsEmpty())
}

func TestOutcomeRoundTrip(t *testing.T) {
	original := core.Outcome{
		Kind:            core.OutcomeDeath,
		OccupantID:      12,
		RemainingHealth: 0,
		ElapsedTime:     11.4,
		Episode:         2,
		State:           core.Panicked,
		Position:        core.Vec3{X: -3, Y: 0.5, Z: 8},
	}
	back := GormToOutcome(OutcomeToGorm("r", testAnchor, original, time.Now()))
	assert.Equal(t, original, back)
}

func TestEpisodeRoundTrip(t *testing.T) {
	original := core.EpisodeSummary{
		ID:        "ep-1",
		Index:     4,
		Duration:  150,
		Total:     30,
		Escaped:   20,
		Dead:      4,
		HealthSum: 1200,
		TimedOut:  true,
	}
	g := EpisodeToGorm("run-1", original, time.Now())
	assert.Equal(t, "run-1", g.RunID)
	assert.Equal(t, original, GormToEpisode(g))
}

func TestSnapshotToGorm(t *testing.T) {
	s := SnapshotToGorm("run-1", core.PopulationSnapshot{
		Episode: 1, SimTime: 12.5, Alive: 10, Escaped: 3, Dead: 1,
		Calm: 4, Anxious: 4, Panicked: 2, Followers: 5, AvgHealth: 80, AvgPanic: 0.4,
	}, time.Now())

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 12.5, s.SimTime)
	assert.Equal(t, 10, s.Alive)
	assert.Equal(t, 2, s.Panicked)
	assert.Equal(t, 5, s.Followers)
	assert.Equal(t, 0.4, s.AvgPanic)
}
