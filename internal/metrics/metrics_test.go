package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors_ObserveChunk(t *testing.T) {
	c := New()

	c.ObserveChunk("master", 95, 5, 2*time.Second)
	c.ObserveChunk("master", 100, 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.chunksProcessed.WithLabelValues("master")))
	assert.Equal(t, 195.0, testutil.ToFloat64(c.itemsSynced.WithLabelValues("master")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.itemsFailed.WithLabelValues("master")))
}

func TestCollectors_Counters(t *testing.T) {
	c := New()

	c.JobReclaimed("heartbeat")
	c.UpstreamRequest("ok")
	c.UpstreamRequest("error")
	c.UpstreamRetry()
	c.ArchiveError()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsReclaimed.WithLabelValues("heartbeat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRequests.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.archiveErrors))
}

func TestCollectors_NilIsSafe(t *testing.T) {
	var c *Collectors

	assert.NotPanics(t, func() {
		c.ObserveChunk("master", 1, 1, time.Second)
		c.JobReclaimed("progress")
		c.UpstreamRequest("ok")
		c.UpstreamRetry()
		c.ArchiveError()
	})
	assert.Nil(t, c.Registry())
}

func TestCollectors_Handler(t *testing.T) {
	c := New()
	c.UpstreamRequest("ok")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalogmirror_upstream_requests_total")
}
