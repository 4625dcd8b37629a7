package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/catalogmirror/internal/coordinator"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/events"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

// This file consolidates the interfaces the HTTP controllers depend on.
// Each controller takes only what it uses.

// SyncService starts and advances phases.
type SyncService interface {
	RequestPhase(ctx context.Context, req syncer.PhaseRequest) (*syncer.PhaseResult, error)
	AdvanceActive(ctx context.Context, continueUntilComplete bool) (*syncer.PhaseResult, error)
	EnqueuePhase(ctx context.Context, req syncer.PhaseRequest) (*syncer.PhaseResult, error)
}

// JobStore provides read access to sync jobs plus operator cancellation.
type JobStore interface {
	ListJobs(ctx context.Context, f jobs.Filter) ([]entities.SyncJob, error)
	GetJob(ctx context.Context, jobID string) (*entities.SyncJob, error)
	RequestCancel(ctx context.Context, jobID string) error
}

// Reclaimer fails stale jobs on demand.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error)
}

// StatusSource is the client-side view of sync progress.
type StatusSource interface {
	Poll(ctx context.Context) (coordinator.Status, error)
	CheckLocalStatus(ctx context.Context) (coordinator.LocalStatus, error)
}

// EventSource streams progress events.
type EventSource interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// TaskStatuser looks up background task state.
type TaskStatuser interface {
	Status(ctx context.Context, id string) (backlite.TaskStatus, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping() error
}
