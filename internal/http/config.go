package http

import (
	"net/http"

	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/logger"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
// Nil dependencies disable the routes that need them.
type RouterConfig struct {
	// Core dependencies
	Sync      SyncService
	Jobs      JobStore
	Reclaimer Reclaimer
	Status    StatusSource
	Events    EventSource
	Tasks     TaskStatuser
	Database  Pinger

	// Prometheus handler served at /metrics
	Metrics http.Handler

	// Request logging; defaults to the process logger
	Logger *logger.Logger

	// Application info
	Version  string
	Driver   string
	SyncType entities.SyncType
}
