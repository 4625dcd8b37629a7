package entrypoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/entities"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "catalog.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Global.ShutdownTimeoutInSeconds = 2
	return cfg
}

func TestBuild(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, entities.SyncTypePokepedia, app.SyncType())
	assert.NoError(t, app.DB.Ping())

	local, err := app.Coordinator.CheckLocalStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, local.NeedsSync)
	assert.Equal(t, entities.PhaseMaster, local.NextPhase)
}

func TestBuild_RejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuild_ArchiveWithoutBucket(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.Enabled = true
	cfg.Archive.Bucket = ""

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestUpstreamConfig(t *testing.T) {
	got := upstreamConfig(config.Upstream{
		BaseURL:     "http://localhost:9999/api/v2",
		Concurrency: 4,
		MaxRetries:  2,
		Timeout:     time.Second,
	})
	assert.Equal(t, "http://localhost:9999/api/v2", got.BaseURL)
	assert.Equal(t, 4, got.Concurrency)
	assert.Equal(t, 2, got.MaxRetries)
	assert.Equal(t, time.Second, got.Timeout)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	shutdownCalled := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, gin.New(), cfg, func(context.Context) { close(shutdownCalled) })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	select {
	case <-shutdownCalled:
	default:
		t.Fatal("shutdown callback was not called")
	}
}
