// Package scheduler is the periodic re-entry trigger: on every tick it advances
// whichever sync job is active, so no invocation needs to outlive its budget.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

const defaultRunTimeout = 2 * time.Minute

// Advancer drives the active job without naming a phase.
type Advancer interface {
	AdvanceActive(ctx context.Context, continueUntilComplete bool) (*syncer.PhaseResult, error)
}

// AdvanceScheduler calls AdvanceActive on a cron schedule. Ticks that arrive
// while a previous run is still going are skipped.
type AdvanceScheduler struct {
	advancer   Advancer
	cfg        config.Scheduler
	runTimeout time.Duration
	log        *logger.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	runCtx     context.Context
	cancelFunc context.CancelFunc
	lastResult *syncer.PhaseResult
}

// New creates a scheduler. runTimeout bounds a single run and should exceed
// the orchestrator's execution budget.
func New(advancer Advancer, cfg config.Scheduler, runTimeout time.Duration) *AdvanceScheduler {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &AdvanceScheduler{
		advancer:   advancer,
		cfg:        cfg,
		runTimeout: runTimeout,
		log:        logger.Default().Component("scheduler"),
		cron:       cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduler if it is enabled.
func (s *AdvanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("Advance scheduler disabled")
		return nil
	}

	if err := ValidateSchedule(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, s.run)
	if err != nil {
		return fmt.Errorf("failed to schedule advance job: %w", err)
	}
	s.entryID = entryID

	cancelCtx, cancel := context.WithCancel(ctx)
	s.runCtx, s.cancelFunc = cancelCtx, cancel

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := NextRunTime(s.cfg.Schedule, time.Now())
	s.log.WithFields(logger.Fields{
		"schedule":    s.cfg.Schedule,
		"description": Describe(s.cfg.Schedule),
		"next_run":    nextRun,
	}).Info("Advance scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop cancels a running advance, waits for it to return and stops the schedule.
func (s *AdvanceScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// The running advance takes mu when it finishes, so wait unlocked.
	<-s.cron.Stop().Done()

	s.log.Info("Advance scheduler stopped")
}

// RunNow triggers an immediate advance in the background.
func (s *AdvanceScheduler) RunNow() {
	go s.run()
}

func (s *AdvanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing reports whether an advance is in progress.
func (s *AdvanceScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// LastResult returns the outcome of the most recent successful advance.
func (s *AdvanceScheduler) LastResult() *syncer.PhaseResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// NextRunTime returns when the next tick will occur.
func (s *AdvanceScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *AdvanceScheduler) run() {
	s.mu.RLock()
	ctx := s.runCtx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.runOnce(ctx)
}

// runOnce performs one advance unless another is in progress. It reports
// whether it ran.
func (s *AdvanceScheduler) runOnce(parent context.Context) bool {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.log.Debug("Advance skipped, previous run still in progress")
		return false
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.advancer.AdvanceActive(ctx, true)
	if err != nil {
		s.log.WithError(err).Error("Advance failed")
		return true
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	log := s.log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds())
	if result.JobID == "" {
		log.Debug(result.Message)
		return true
	}
	log.WithFields(logger.Fields{
		logger.FieldJobID: result.JobID,
		logger.FieldPhase: result.Phase,
		"chunks":          result.ChunksProcessed,
	}).Info(result.Message)
	return true
}
