// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the API. Every
// request this service handles is about a personal identifier (a phone
// number, an email address, a PAN), so the logger scrubs request metadata
// before it is emitted:
//
//   - Never logs request or response bodies
//   - Redacts emails, phone numbers, PAN codes, and UUID-like identifiers
//     from query strings and header values
//   - Fully masks sensitive headers (Authorization, Cookie, Set-Cookie,
//     X-Bot-Token, plus any extras the caller names)
//
// It also attaches a request-scoped zerolog.Logger (see LoggerFrom) carrying
// the correlation ID so handlers can log without repeating the plumbing.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders lists extra HTTP header names whose values are replaced with
// "[REDACTED]" wholesale. Matching is case-insensitive and merged with the
// built-in sensitive set.
type RedactOptions struct {
	MaskHeaders []string
}

// Patterns are ordered strictest first: PAN and UUID before phone, so the
// loose digit pattern cannot eat fragments of the structured ones.
var (
	uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	panRE  = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)
	mailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only phone pattern, 8..15 digits with optional separators.
	phoneRE = regexp.MustCompile(`\b\+?\d{1,3}?[ .\-]?\(?\d{2,5}\)?[ .\-]?\d{3,5}[ .\-]?\d{3,5}\b`)
)

func redact(s string) string {
	if s == "" {
		return s
	}
	out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	out = panRE.ReplaceAllString(out, "[REDACTED:pan]")
	out = mailRE.ReplaceAllString(out, "[REDACTED:email]")
	out = phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
	return out
}

// RedactingLogger returns a Gin middleware that logs HTTP requests with
// sensitive values scrubbed and attaches the request-scoped logger.
//
// Log lines carry method, matched route, scrubbed query string, status,
// response size, latency, client IP, and the correlation ID. Level follows
// the outcome: error for 5xx (or collected Gin errors), warn for 4xx, info
// otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-bot-token":   {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		rid := RequestIDFrom(c)
		reqLog := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &reqLog)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		ev := log.Info()
		switch {
		case len(c.Errors) > 0:
			ev = log.Error().Str("errors", redact(c.Errors.String()))
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", latency).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
