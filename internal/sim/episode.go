package sim

import (
	"context"
	"time"

	"github.com/OCAP2/evacsim/pkg/core"
)

// RunEpisode resets the arena and steps it until the episode is over.
func (s *Simulation) RunEpisode(ctx context.Context) (core.EpisodeSummary, error) {
	s.Reset()
	for {
		if done, timedOut := s.Done(); done {
			sum := s.summary(timedOut)
			s.stats.Add(sum)
			s.metrics.episodes.Add(ctx, 1)
			s.logger.Info("episode finished",
				"episode", sum.Index,
				"escaped", sum.Escaped,
				"dead", sum.Dead,
				"total", sum.Total,
				"duration", sum.Duration,
				"timed_out", sum.TimedOut,
				"team_reward", s.ledger.Team())
			s.publish(TopicEpisode, sum)
			return sum, nil
		}

		start := time.Now()
		if err := s.Step(ctx); err != nil {
			return s.summary(false), err
		}
		if err := s.pace(ctx, time.Since(start)); err != nil {
			return s.summary(false), err
		}
	}
}

// Run plays the configured number of episodes and returns the aggregate report.
func (s *Simulation) Run(ctx context.Context) (core.RunReport, error) {
	for range s.cfg.Episodes {
		if _, err := s.RunEpisode(ctx); err != nil {
			return s.stats.Report(s.cfg.PanicMode), err
		}
	}
	report := s.stats.Report(s.cfg.PanicMode)
	s.logger.Info("run finished",
		"panic_mode", report.PanicMode,
		"episodes", report.TotalEpisodes,
		"success_rate", report.SuccessRate,
		"avg_time", report.AvgTime,
		"avg_health", report.AvgHealth)
	return report, nil
}

// pace sleeps off the rest of a step when the run is throttled.
func (s *Simulation) pace(ctx context.Context, elapsed time.Duration) error {
	if s.cfg.Pace <= 0 {
		return ctx.Err()
	}
	target := time.Duration(s.cfg.Dt / s.cfg.Pace * float64(time.Second))
	if elapsed >= target {
		return ctx.Err()
	}
	t := time.NewTimer(target - elapsed)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
