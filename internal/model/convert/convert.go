package convert

import (
	"github.com/OCAP2/evacsim/internal/model"
	"github.com/OCAP2/evacsim/pkg/core"
)

// GormToOutcome converts a stored model.Outcome back to a core.Outcome. The trail is not read
// back.
func GormToOutcome(o model.Outcome) core.Outcome {
	kind := core.OutcomeDeath
	if o.Kind == core.OutcomeEscape.String() {
		kind = core.OutcomeEscape
	}
	state, _ := core.ParseBehaviorState(o.State)
	return core.Outcome{
		Kind:            kind,
		OccupantID:      core.EntityID(o.OccupantID),
		RemainingHealth: o.RemainingHealth,
		ElapsedTime:     o.ElapsedTime,
		Episode:         o.Episode,
		State:           state,
		Position:        core.Vec3{X: o.X, Y: o.Y, Z: o.Z},
	}
}

// GormToEpisode converts a stored model.Episode back to a core.EpisodeSummary.
func GormToEpisode(e model.Episode) core.EpisodeSummary {
	return core.EpisodeSummary{
		ID:        e.ID,
		Index:     e.Index,
		Duration:  e.Duration,
		Total:     e.Total,
		Escaped:   e.Escaped,
		Dead:      e.Dead,
		HealthSum: e.HealthSum,
		TimedOut:  e.TimedOut,
	}
}
