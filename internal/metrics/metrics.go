// Package metrics owns the prometheus collectors of the sync engine.
// Every method is safe on a nil *Collectors, so components can run unmetered.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogmirror"

type Collectors struct {
	registry *prometheus.Registry

	chunksProcessed  *prometheus.CounterVec
	itemsSynced      *prometheus.CounterVec
	itemsFailed      *prometheus.CounterVec
	chunkDuration    *prometheus.HistogramVec
	jobsReclaimed    *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  prometheus.Counter
	archiveErrors    prometheus.Counter
}

// New builds collectors on a private registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		chunksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Chunks committed to the job store.",
		}, []string{"phase"}),
		itemsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_synced_total",
			Help:      "Upstream items written to the local store.",
		}, []string{"phase"}),
		itemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Upstream items that failed to fetch or transform.",
		}, []string{"phase"}),
		chunkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Wall-clock time spent processing one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"phase"}),
		jobsReclaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_reclaimed_total",
			Help:      "Jobs failed by the watchdog.",
		}, []string{"reason"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream requests by final outcome.",
		}, []string{"outcome"}),
		upstreamRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Upstream request attempts that were retried.",
		}),
		archiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Raw payloads that could not be archived.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.chunksProcessed,
		c.itemsSynced,
		c.itemsFailed,
		c.chunkDuration,
		c.jobsReclaimed,
		c.upstreamRequests,
		c.upstreamRetries,
		c.archiveErrors,
	)
	return c
}

// Handler serves the registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collectors) ObserveChunk(phase string, synced, failed int, took time.Duration) {
	if c == nil {
		return
	}
	c.chunksProcessed.WithLabelValues(phase).Inc()
	c.itemsSynced.WithLabelValues(phase).Add(float64(synced))
	c.itemsFailed.WithLabelValues(phase).Add(float64(failed))
	c.chunkDuration.WithLabelValues(phase).Observe(took.Seconds())
}

func (c *Collectors) JobReclaimed(reason string) {
	if c == nil {
		return
	}
	c.jobsReclaimed.WithLabelValues(reason).Inc()
}

// UpstreamRequest records a finished request; outcome is "ok" or "error".
func (c *Collectors) UpstreamRequest(outcome string) {
	if c == nil {
		return
	}
	c.upstreamRequests.WithLabelValues(outcome).Inc()
}

func (c *Collectors) UpstreamRetry() {
	if c == nil {
		return
	}
	c.upstreamRetries.Inc()
}

func (c *Collectors) ArchiveError() {
	if c == nil {
		return
	}
	c.archiveErrors.Inc()
}
