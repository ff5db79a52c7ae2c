// Package middleware holds the Gin middleware shared by the panel API:
// correlation ids, access logging, panic recovery, security headers, rate
// limiting, idempotency keys, session checks and Prometheus instrumentation.
//
// Mount RequestID first so every later layer can read the id.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "request.id"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "request.logger"

	maxRequestIDLen   = 128
	maxQueryLogLength = 2048 // bytes of raw query kept in access logs
)

// RequestID reuses a caller supplied X-Request-ID of sane length or mints a
// UUID, then echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Recovery turns a handler panic into a logged stack and a 500 envelope. If
// the handler already started writing only the status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Str("route", c.FullPath()).
				Msg("handler panicked")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// WithLogger attaches lg as the request-scoped logger.
func WithLogger(c *gin.Context, lg *zerolog.Logger) {
	c.Set(loggerKey, lg)
}

// LoggerFrom returns the request-scoped zerolog.Logger, or the global logger
// with the request id when none was attached. Callers never need nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	rid, _ := c.Get(requestIDKey)
	l := log.With().Str("request_id", asString(rid)).Logger()
	return &l
}

// RequestIDFrom returns the correlation ID of the current request.
func RequestIDFrom(c *gin.Context) string {
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// abortJSON stops the chain with the standard failure envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"request_id": RequestIDFrom(c),
		"code":       code,
		"message":    msg,
	})
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate keeps the first limit bytes of s and marks the cut.
func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}
