package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

// JobRunner drives one existing sync job.
type JobRunner interface {
	RunJob(ctx context.Context, jobID string, continueUntilComplete bool) (*syncer.PhaseResult, error)
}

// RequestPhaseTask starts a queued (pending) sync job and drives it within one
// execution budget.
type RequestPhaseTask struct {
	JobID                 string `json:"job_id"`
	ContinueUntilComplete bool   `json:"continue_until_complete"`
}

func (t RequestPhaseTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "request_phase",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RequestPhaseProcessor runs the job named by the task. A job that no longer
// exists is dropped rather than retried.
func RequestPhaseProcessor(runner JobRunner) backlite.QueueProcessor[RequestPhaseTask] {
	return func(ctx context.Context, task RequestPhaseTask) error {
		if runner == nil {
			return fmt.Errorf("job runner not configured")
		}
		log := logger.Default().Component("tasks").WithField(logger.FieldJobID, task.JobID)

		result, err := runner.RunJob(ctx, task.JobID, task.ContinueUntilComplete)
		if errors.Is(err, jobs.ErrJobNotFound) {
			log.Warn("Queued job no longer exists, dropping task")
			return nil
		}
		if err != nil {
			return fmt.Errorf("run job %s: %w", task.JobID, err)
		}

		log.WithFields(logger.Fields{
			logger.FieldPhase: result.Phase,
			"chunks":          result.ChunksProcessed,
			"completed":       result.Completed,
		}).Info(result.Message)
		return nil
	}
}

func NewRequestPhaseQueue(runner JobRunner) backlite.Queue {
	return backlite.NewQueue(RequestPhaseProcessor(runner))
}
