// Package convert provides functions to convert between core models and GORM models
package convert

import (
	"encoding/json"
	"time"

	"github.com/OCAP2/evacsim/internal/geo"
	"github.com/OCAP2/evacsim/internal/model"
	"github.com/OCAP2/evacsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// configToJSON stores the run configuration as JSON. Unserializable input becomes an empty object.
func configToJSON(cfg any) datatypes.JSON {
	if cfg == nil {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run. cfg is any JSON-serializable description of
// the simulation settings.
func CoreToRun(r core.Run, anchor geo.Anchor, cfg any) model.Run {
	return model.Run{
		ID:          r.ID,
		StartTime:   r.StartTime,
		PanicMode:   r.PanicMode,
		DatasetPath: r.DatasetPath,
		Occupants:   r.Occupants,
		Agents:      r.Agents,
		Tag:         r.Tag,
		Location:    anchor.Point(core.Vec3{}),
		Config:      configToJSON(cfg),
	}
}

// ReportColumns are the run columns filled in by ApplyReport.
var ReportColumns = []string{"end_time", "total_episodes", "success_rate", "avg_time", "avg_health"}

// ApplyReport copies the aggregate report onto a run row.
func ApplyReport(run *model.Run, report core.RunReport, end time.Time) {
	run.EndTime.Time = end
	run.EndTime.Valid = true
	run.TotalEpisodes = report.TotalEpisodes
	run.SuccessRate = report.SuccessRate
	run.AvgTime = report.AvgTime
	run.AvgHealth = report.AvgHealth
}

// EpisodeToGorm converts a core.EpisodeSummary to a GORM model.Episode.
func EpisodeToGorm(runID string, e core.EpisodeSummary, t time.Time) model.Episode {
	return model.Episode{
		ID:        e.ID,
		Time:      t,
		RunID:     runID,
		Index:     e.Index,
		Duration:  e.Duration,
		Total:     e.Total,
		Escaped:   e.Escaped,
		Dead:      e.Dead,
		HealthSum: e.HealthSum,
		TimedOut:  e.TimedOut,
	}
}

// OutcomeToGorm converts a core.Outcome to a GORM model.Outcome. Positions are projected through
// the site anchor; trails shorter than two points are stored empty.
func OutcomeToGorm(runID string, anchor geo.Anchor, o core.Outcome, t time.Time) model.Outcome {
	out := model.Outcome{
		Time:            t,
		RunID:           runID,
		Episode:         o.Episode,
		OccupantID:      uint32(o.OccupantID),
		Kind:            o.Kind.String(),
		RemainingHealth: o.RemainingHealth,
		ElapsedTime:     o.ElapsedTime,
		State:           o.State.String(),
		X:               o.Position.X,
		Y:               o.Position.Y,
		Z:               o.Position.Z,
		Location:        anchor.Point(o.Position),
	}
	if ls, err := anchor.TrailLineString(o.Trail); err == nil {
		out.Trail = ls.AsGeometry()
	} else {
		out.Trail = geom.LineString{}.AsGeometry()
	}
	return out
}

// SnapshotToGorm converts a core.PopulationSnapshot to a GORM model.PopulationSample.
func SnapshotToGorm(runID string, s core.PopulationSnapshot, t time.Time) model.PopulationSample {
	return model.PopulationSample{
		Time:      t,
		RunID:     runID,
		Episode:   s.Episode,
		SimTime:   s.SimTime,
		Alive:     s.Alive,
		Escaped:   s.Escaped,
		Dead:      s.Dead,
		Calm:      s.Calm,
		Anxious:   s.Anxious,
		Panicked:  s.Panicked,
		Followers: s.Followers,
		AvgHealth: s.AvgHealth,
		AvgPanic:  s.AvgPanic,
	}
}
