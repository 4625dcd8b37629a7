package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/catalogmirror/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags every request with a request id, stores a logger carrying
// it in the request context and logs the outcome once the handler returns.
func RequestLogger(base *logger.Logger) gin.HandlerFunc {
	if base == nil {
		base = logger.Default()
	}
	base = base.Component("http")

	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		log := base.WithField(logger.FieldRequestID, requestID)
		c.Request = c.Request.WithContext(log.WithContext(c.Request.Context()))

		c.Next()

		entry := log.WithFields(logger.Fields{
			"method":               c.Request.Method,
			"path":                 c.FullPath(),
			logger.FieldStatus:     c.Writer.Status(),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}
