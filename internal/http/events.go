package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	eventBuffer       = 32
	keepAliveInterval = 15 * time.Second
)

// EventsController streams progress events as server-sent events.
type EventsController struct {
	source    EventSource
	keepAlive time.Duration
}

func NewEventsController(source EventSource) *EventsController {
	return &EventsController{source: source, keepAlive: keepAliveInterval}
}

// Stream handles GET /api/sync/events?job_id=
// Events are named by their type. A ping keeps idle proxies from closing the stream.
func (ec *EventsController) Stream(c *gin.Context) {
	jobID := c.Query("job_id")

	ch, unsubscribe := ec.source.Subscribe(eventBuffer)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(ec.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			if jobID != "" && e.JobID != jobID {
				return true
			}
			c.SSEvent(string(e.Type), e)
			return true
		case t := <-ticker.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			return true
		}
	})
}
