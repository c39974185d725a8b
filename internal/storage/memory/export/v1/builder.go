package v1

import (
	"sort"
	"time"

	"github.com/OCAP2/evacsim/pkg/core"
)

// RunData contains all the data needed to build an export
type RunData struct {
	Run        core.Run
	Report     *core.RunReport
	Episodes   []core.EpisodeSummary
	Outcomes   map[int][]core.Outcome // keyed by episode index
	Population []core.PopulationSnapshot
}

// Build creates an Export from the run data. Outcomes of an episode that never produced a
// summary are exported under a placeholder episode so nothing is lost.
func Build(data *RunData) Export {
	export := Export{
		FormatVersion: FormatVersion,
		RunID:         data.Run.ID,
		StartTime:     data.Run.StartTime.UTC().Format(time.RFC3339),
		PanicMode:     data.Run.PanicMode,
		DatasetPath:   data.Run.DatasetPath,
		Occupants:     data.Run.Occupants,
		Agents:        data.Run.Agents,
		Tag:           data.Run.Tag,
		Episodes:      make([]Episode, 0, len(data.Episodes)),
		Population:    make([][]any, 0, len(data.Population)),
	}

	if data.Report != nil {
		export.Report = &Report{
			TotalEpisodes: data.Report.TotalEpisodes,
			SuccessRate:   data.Report.SuccessRate,
			AvgTime:       data.Report.AvgTime,
			AvgHealth:     data.Report.AvgHealth,
		}
	}

	seen := make(map[int]bool, len(data.Episodes))
	for _, e := range data.Episodes {
		seen[e.Index] = true
		export.Episodes = append(export.Episodes, Episode{
			ID:        e.ID,
			Index:     e.Index,
			Duration:  e.Duration,
			Total:     e.Total,
			Escaped:   e.Escaped,
			Dead:      e.Dead,
			HealthSum: e.HealthSum,
			TimedOut:  e.TimedOut,
			Outcomes:  outcomeRows(data.Outcomes[e.Index]),
		})
	}

	// Outcomes of an unfinished episode
	var pending []int
	for idx := range data.Outcomes {
		if !seen[idx] {
			pending = append(pending, idx)
		}
	}
	sort.Ints(pending)
	for _, idx := range pending {
		export.Episodes = append(export.Episodes, Episode{
			Index:    idx,
			Outcomes: outcomeRows(data.Outcomes[idx]),
		})
	}

	// Format: [episode, simTime, alive, escaped, dead, calm, anxious, panicked, followers, avgHealth, avgPanic]
	for _, s := range data.Population {
		export.Population = append(export.Population, []any{
			s.Episode,
			s.SimTime,
			s.Alive,
			s.Escaped,
			s.Dead,
			s.Calm,
			s.Anxious,
			s.Panicked,
			s.Followers,
			s.AvgHealth,
			s.AvgPanic,
		})
	}

	return export
}

func outcomeRows(outcomes []core.Outcome) [][]any {
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []any{
			o.OccupantID,
			o.Kind.String(),
			o.ElapsedTime,
			o.RemainingHealth,
			o.State.String(),
			vec(o.Position),
			trail(o.Trail),
		})
	}
	return rows
}

func vec(v core.Vec3) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func trail(points []core.Vec3) [][]float64 {
	out := make([][]float64, 0, len(points))
	for _, p := range points {
		out = append(out, vec(p))
	}
	return out
}
