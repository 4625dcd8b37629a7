package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	l.WithFields(Fields{FieldJobID: "job-1", FieldPhase: "master"}).Info("chunk processed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "chunk processed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "job-1", entry[FieldJobID])
	assert.Equal(t, "master", entry[FieldPhase])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Format: "text", Output: &buf})

	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContext(t *testing.T) {
	t.Run("falls back to default", func(t *testing.T) {
		assert.Same(t, Default(), FromContext(context.Background()))
	})

	t.Run("returns attached logger with fields", func(t *testing.T) {
		var buf bytes.Buffer
		base := New(&Config{Level: "info", Format: "json", Output: &buf})
		ctx := base.WithContext(context.Background())
		ctx = WithField(ctx, FieldComponent, "watchdog")

		FromContext(ctx).Info("reclaimed")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "watchdog", entry[FieldComponent])
	})
}
