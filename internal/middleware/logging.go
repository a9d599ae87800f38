// Package middleware holds the gin middleware shared by every route.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"messaging-service/internal/observability"
)

const (
	RequestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
)

// RequestID propagates X-Request-ID or generates one, and stores it in both
// the gin and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(RequestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

// Logger attaches a request-scoped zerolog logger to the request context and
// writes one access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		ev := l.Info()
		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= 400:
			ev = l.Warn()
		}
		ev.Str("user_id", c.GetString("userID")).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg("request")
	}
}

// Recovery turns panics into a JSON 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := c.GetString(RequestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if c.Writer.Written() {
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": rid,
					"error":      "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request logger, or the global one outside Logger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	return &log.Logger
}
