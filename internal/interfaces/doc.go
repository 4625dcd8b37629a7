// Package interfaces documents the seams between the sync engine's packages.
//
// Consumers declare the narrow interfaces they need next to the code that
// uses them; this package pins which concrete type satisfies each one.
//
// # Interface Categories
//
// ## Job Store
//
//   - syncer.JobStore: create, advance and terminate jobs (internal/syncer/processor.go)
//   - watchdog.Store: list active jobs and fail stale ones (internal/watchdog/watchdog.go)
//   - coordinator.JobReader: client-side job reads (internal/coordinator/coordinator.go)
//   - http.JobStore: job listing and cancellation (internal/http/stores.go)
//
// All are implemented by *jobs.Repository.
//
// ## Upstream and Local Store
//
//   - syncer.Fetcher: paginated listings and bounded detail fan-out (*pokeapi.Client)
//   - archive.Archiver: raw payload archive (*archive.S3Archive, archive.Noop)
//   - coordinator.LocalCounter: per-phase row counts (*catalog.Repository)
//
// ## Entry Points
//
// The orchestrator is entered from four places, each through its own interface:
//
//   - coordinator.PhaseRequester: phase-by-phase client sync
//   - scheduler.Advancer: cron re-entry on whichever job is active
//   - tasks.JobRunner: queued phase requests
//   - http.SyncService: the operator API
//
// ## Progress Reporting
//
//   - events.Publisher: job store writes publish progress (*events.Broker)
//   - coordinator.Subscriber, http.EventSource: progress consumers (*events.Broker)
package interfaces
