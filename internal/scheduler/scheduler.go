// Package scheduler runs the crawl-and-ingest update cycle in the
// background and persists when it last ran, so restarts don't reset the
// clock.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"regrag/pkg/models"
)

// UpdateFunc performs one full update cycle: crawl then ingest.
type UpdateFunc func(ctx context.Context) (*models.CrawlSummary, *models.IngestSummary, error)

// State is the persisted scheduler state.
type State struct {
	LastUpdate        time.Time             `json:"last_update"`
	LastCrawlSummary  *models.CrawlSummary  `json:"last_crawl_summary,omitempty"`
	LastIngestSummary *models.IngestSummary `json:"last_ingest_summary,omitempty"`
	Running           bool                  `json:"running"`
	LastError         string                `json:"last_error,omitempty"`
}

// Config holds scheduler timing configuration.
type Config struct {
	Interval      time.Duration // time between update cycles
	CheckInterval time.Duration // how often the loop checks if a cycle is due
	StartupDelay  time.Duration // grace period before the first check
}

// Scheduler owns the update cycle. At most one update runs at a time;
// a trigger while one is running is a no-op.
type Scheduler struct {
	config    Config
	statePath string
	update    UpdateFunc

	runMu   sync.Mutex // held for the duration of an update
	stateMu sync.Mutex // guards state and its file
	state   State
}

// New creates a Scheduler, loading any previously persisted state.
func New(config Config, statePath string, update UpdateFunc) *Scheduler {
	s := &Scheduler{
		config:    config,
		statePath: statePath,
		update:    update,
	}
	s.loadState()
	return s
}

// Snapshot returns a copy of the current state.
func (s *Scheduler) Snapshot() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// TriggerUpdate runs one update cycle now. Returns false without doing
// anything when a cycle is already in flight.
func (s *Scheduler) TriggerUpdate(ctx context.Context) bool {
	if !s.runMu.TryLock() {
		slog.Info("update already running, skipping trigger")
		return false
	}
	defer s.runMu.Unlock()

	s.setRunning(true)
	defer s.setRunning(false)

	slog.Info("update cycle starting")
	crawl, ingest, err := s.runSafely(ctx)

	s.stateMu.Lock()
	s.state.LastUpdate = time.Now().UTC()
	if err != nil {
		// The cycle failed but the loop keeps going; the error is surfaced
		// through the state instead.
		s.state.LastError = err.Error()
		slog.Error("update cycle failed", "error", err)
	} else {
		s.state.LastError = ""
		s.state.LastCrawlSummary = crawl
		s.state.LastIngestSummary = ingest
		slog.Info("update cycle complete",
			"new_downloads", crawl.Total(), "files_ingested", ingest.TotalFiles)
	}
	s.persistLocked()
	s.stateMu.Unlock()

	return true
}

// runSafely converts a panicking update into an error so one bad cycle
// cannot take down the serve process.
func (s *Scheduler) runSafely(ctx context.Context) (crawl *models.CrawlSummary, ingest *models.IngestSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update panicked: %v", r)
		}
	}()
	return s.update(ctx)
}

// Run loops until the context is cancelled, triggering an update whenever
// the configured interval has elapsed since the last one.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started",
		"interval", s.config.Interval, "check_interval", s.config.CheckInterval)

	select {
	case <-time.After(s.config.StartupDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		if s.due() {
			s.TriggerUpdate(ctx)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) due() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return time.Since(s.state.LastUpdate) >= s.config.Interval
}

func (s *Scheduler) setRunning(running bool) {
	s.stateMu.Lock()
	s.state.Running = running
	s.persistLocked()
	s.stateMu.Unlock()
}

// LoadState reads a persisted state file without constructing a Scheduler.
// The second return is false when no usable state exists.
func LoadState(path string) (State, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, false
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false
	}
	return st, true
}

func (s *Scheduler) loadState() {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("unreadable scheduler state, starting fresh", "path", s.statePath, "error", err)
		return
	}
	// A crash mid-update leaves running=true in the file; it isn't true now.
	st.Running = false
	s.state = st
}

// persistLocked writes the state file; stateMu must be held.
func (s *Scheduler) persistLocked() {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		slog.Warn("persisting scheduler state failed", "error", err)
		return
	}
	if err := os.WriteFile(s.statePath, data, 0o644); err != nil {
		slog.Warn("persisting scheduler state failed", "error", err)
	}
}
