// Package database provides the data access layer for the catalog mirror.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite | postgres), migrations
//	├── jobs/            # Job Store: sync job rows, progress, heartbeats
//	└── catalog/         # Mirrored upstream rows: upserts, id resolution, counts
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase(cfg.Database)
//
//	jobStore := jobs.NewRepository(db.DB, broker)
//	catalogRepo := catalog.NewRepository(db.DB)
//
// # Running Job Index
//
// Migrate adds a partial unique index on sync_jobs (sync_type, phase) for
// status = 'running'. Both supported drivers accept the syntax. A second
// concurrent create for the same phase fails with gorm.ErrDuplicatedKey,
// which jobs.Repository reports as jobs.ErrDuplicateActiveJob.
package database
