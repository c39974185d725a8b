package influx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/OCAP2/evacsim/internal/config"
	"github.com/OCAP2/evacsim/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// PerformanceBucket holds per-episode timings next to the population bucket.
const PerformanceBucket = "sim_performance"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influxdb is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile io.Closer
	mu         sync.Mutex
	runID      string
	panicMode  string
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: []string{cfg.Bucket, PerformanceBucket},
		Logger:      log,
		BackupPath:  backupPath,
		cfg:         cfg,
	}
}

// Connect establishes a connection to InfluxDB. An unreachable server switches the manager to
// a gzipped line-protocol backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		// create backup writer
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// SetRun tags every following point with the run.
func (m *Manager) SetRun(run *core.Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = run.ID
	m.panicMode = run.PanicMode
}

func (m *Manager) tags() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID, m.panicMode
}

// WriteSnapshot records the population of one tick.
func (m *Manager) WriteSnapshot(s *core.PopulationSnapshot) error {
	runID, mode := m.tags()
	return m.WritePoint(m.cfg.Bucket, SnapshotPoint(runID, mode, s, time.Now()))
}

// WriteOutcome records a death or escape.
func (m *Manager) WriteOutcome(o *core.Outcome) error {
	runID, mode := m.tags()
	return m.WritePoint(m.cfg.Bucket, OutcomePoint(runID, mode, o, time.Now()))
}

// WriteEpisode records the episode summary in the performance bucket.
func (m *Manager) WriteEpisode(e *core.EpisodeSummary) error {
	runID, mode := m.tags()
	return m.WritePoint(PerformanceBucket, EpisodePoint(runID, mode, e, time.Now()))
}

// Close flushes the writers and the backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// SnapshotPoint builds the "population" point of one tick.
func SnapshotPoint(runID, panicMode string, s *core.PopulationSnapshot, t time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint("population",
		map[string]string{
			"run":        runID,
			"panic_mode": panicMode,
			"episode":    strconv.Itoa(s.Episode),
		},
		map[string]interface{}{
			"sim_time":   s.SimTime,
			"alive":      s.Alive,
			"escaped":    s.Escaped,
			"dead":       s.Dead,
			"calm":       s.Calm,
			"anxious":    s.Anxious,
			"panicked":   s.Panicked,
			"followers":  s.Followers,
			"avg_health": s.AvgHealth,
			"avg_panic":  s.AvgPanic,
		},
		t,
	)
}

// OutcomePoint builds the "outcome" point of a death or escape.
func OutcomePoint(runID, panicMode string, o *core.Outcome, t time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint("outcome",
		map[string]string{
			"run":        runID,
			"panic_mode": panicMode,
			"episode":    strconv.Itoa(o.Episode),
			"kind":       o.Kind.String(),
			"state":      o.State.String(),
		},
		map[string]interface{}{
			"occupant":         int64(o.OccupantID),
			"elapsed_time":     o.ElapsedTime,
			"remaining_health": float64(o.RemainingHealth),
		},
		t,
	)
}

// EpisodePoint builds the "episode" point written when an episode ends.
func EpisodePoint(runID, panicMode string, e *core.EpisodeSummary, t time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint("episode",
		map[string]string{
			"run":        runID,
			"panic_mode": panicMode,
			"timed_out":  strconv.FormatBool(e.TimedOut),
		},
		map[string]interface{}{
			"index":      e.Index,
			"duration":   e.Duration,
			"total":      e.Total,
			"escaped":    e.Escaped,
			"dead":       e.Dead,
			"health_sum": e.HealthSum,
		},
		t,
	)
}
