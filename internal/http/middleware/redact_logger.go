package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds header names to mask on top of Authorization, Cookie,
// Set-Cookie and X-Cron-Secret. Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Formatted or bare CPF (11 digits) and CNPJ (14 digits).
	docRE = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}\-?\d{2}\b|\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}\-?\d{2}\b`)
	// Digits only so UUID hex runs never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,5}[ .-]?\d{4}\b`)
)

// redact scrubs s. UUIDs go first so the phone pattern cannot eat their digit
// groups, and documents before phones for the same reason.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = docRE.ReplaceAllString(s, "[REDACTED:doc]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// scrubHeaders flattens h, hiding masked headers entirely and redacting
// identifiers in the rest.
func scrubHeaders(h http.Header, masked map[string]bool) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if masked[strings.ToLower(name)] {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = redact(strings.Join(values, ", "))
	}
	return out
}

// RedactingLogger writes one access line per request, at warn for 4xx and
// error for 5xx. Bodies are never logged. It also attaches the
// request-scoped logger returned by LoggerFrom.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"set-cookie":    true,
		"x-cron-secret": true,
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		query := redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		headers := scrubHeaders(c.Request.Header, masked)

		reqID := RequestIDFrom(c)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		l := log.With().Str("request_id", reqID).Str("path", route).Logger()
		WithLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.
			Str("method", c.Request.Method).
			Str("query", query).
			Str("user_id", UserID(c)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
