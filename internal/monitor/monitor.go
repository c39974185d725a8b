package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/evacsim/internal/session"
	"github.com/OCAP2/evacsim/internal/worker"
)

// DefaultInterval between two status writes.
const DefaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger        *slog.Logger
	Session       *session.Context
	WorkerManager *worker.Manager
	// Active reports the occupants still inside the building.
	Active     func() int
	StatusPath string
	Interval   time.Duration
}

// Status is one line of the status file.
type Status struct {
	Time                time.Time      `json:"time"`
	RunID               string         `json:"runId"`
	Episode             int            `json:"episode"`
	ActiveOccupants     int            `json:"activeOccupants"`
	Events              worker.Counts  `json:"events"`
	WriteQueues         map[string]int `json:"writeQueues,omitempty"`
	LastWriteDurationMs float32        `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() Status {
	st := Status{Time: time.Now().UTC()}
	if s.deps.Session != nil {
		st.RunID = s.deps.Session.GetRun().ID
		st.Episode = s.deps.Session.GetEpisode()
	}
	if s.deps.Active != nil {
		st.ActiveOccupants = s.deps.Active()
	}
	if s.deps.WorkerManager != nil {
		st.Events = s.deps.WorkerManager.Counts()
		st.WriteQueues = s.deps.WorkerManager.QueueLengths()
		st.LastWriteDurationMs = float32(s.deps.WorkerManager.GetLastDBWriteDuration().Milliseconds())
	}
	return st
}

// WriteStatus replaces the content of the status file with st.
func WriteStatus(path string, st Status) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	// write then rename so readers never see a half written file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(s.done)
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.GetProgramStatus()
				logger.Debug("status",
					"active", st.ActiveOccupants,
					"outcomes", st.Events.Outcomes,
					"lastWriteMs", st.LastWriteDurationMs)

				if s.deps.StatusPath == "" {
					continue
				}
				if err := WriteStatus(s.deps.StatusPath, st); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
