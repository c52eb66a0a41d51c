package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cyberwill/backend/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestLogger assigns a request id, attaches a request-scoped logger to the
// request context and records the access log line and HTTP metrics.
func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		logger := a.logger.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.RequestCount.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(elapsed.Seconds())

		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// requestLog returns the request-scoped logger set by requestLogger.
func requestLog(c *gin.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request.Context())
}
