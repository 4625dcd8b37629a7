package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/catalogmirror/internal/coordinator"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/syncer"
	"github.com/mrlokans/catalogmirror/internal/tasks"
	"github.com/mrlokans/catalogmirror/internal/watchdog"
)

func TestJobRepositoryServesEveryConsumer(t *testing.T) {
	repo := (*jobs.Repository)(nil)
	assert.Implements(t, (*syncer.JobStore)(nil), repo)
	assert.Implements(t, (*watchdog.Store)(nil), repo)
	assert.Implements(t, (*coordinator.JobReader)(nil), repo)
}

func TestOrchestratorEntryPoints(t *testing.T) {
	o := (*syncer.Orchestrator)(nil)
	assert.Implements(t, (*coordinator.PhaseRequester)(nil), o)
	assert.Implements(t, (*tasks.JobRunner)(nil), o)
	assert.Implements(t, (*syncer.Enqueuer)(nil), (*tasks.Client)(nil))
}
