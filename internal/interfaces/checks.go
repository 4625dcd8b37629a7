package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/catalogmirror/internal/archive"
	"github.com/mrlokans/catalogmirror/internal/coordinator"
	"github.com/mrlokans/catalogmirror/internal/database"
	"github.com/mrlokans/catalogmirror/internal/database/catalog"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/events"
	"github.com/mrlokans/catalogmirror/internal/http"
	"github.com/mrlokans/catalogmirror/internal/pokeapi"
	"github.com/mrlokans/catalogmirror/internal/scheduler"
	"github.com/mrlokans/catalogmirror/internal/syncer"
	"github.com/mrlokans/catalogmirror/internal/tasks"
	"github.com/mrlokans/catalogmirror/internal/watchdog"
)

// =============================================================================
// Job Store
// =============================================================================

var _ syncer.JobStore = (*jobs.Repository)(nil)
var _ watchdog.Store = (*jobs.Repository)(nil)
var _ coordinator.JobReader = (*jobs.Repository)(nil)
var _ http.JobStore = (*jobs.Repository)(nil)

// =============================================================================
// Local Store and Upstream
// =============================================================================

var _ coordinator.LocalCounter = (*catalog.Repository)(nil)
var _ syncer.Fetcher = (*pokeapi.Client)(nil)
var _ archive.Archiver = (*archive.S3Archive)(nil)
var _ archive.Archiver = archive.Noop{}
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Orchestration Entry Points
// =============================================================================

var _ coordinator.PhaseRequester = (*syncer.Orchestrator)(nil)
var _ scheduler.Advancer = (*syncer.Orchestrator)(nil)
var _ tasks.JobRunner = (*syncer.Orchestrator)(nil)
var _ http.SyncService = (*syncer.Orchestrator)(nil)

var _ syncer.Reclaimer = (*watchdog.Watchdog)(nil)
var _ tasks.Reclaimer = (*watchdog.Watchdog)(nil)
var _ http.Reclaimer = (*watchdog.Watchdog)(nil)

// =============================================================================
// Task Queue
// =============================================================================

var _ syncer.Enqueuer = (*tasks.Client)(nil)
var _ http.TaskStatuser = (*tasks.Client)(nil)

// =============================================================================
// Progress Reporting
// =============================================================================

var _ events.Publisher = (*events.Broker)(nil)
var _ coordinator.Subscriber = (*events.Broker)(nil)
var _ http.EventSource = (*events.Broker)(nil)
var _ http.StatusSource = (*coordinator.Coordinator)(nil)
