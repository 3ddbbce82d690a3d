// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured access logger. It
// scrubs obvious PII from request metadata, attaches a request-scoped logger
// for handlers, and emits one log line per request.
//
//   - Never logs request or response bodies
//   - Redacts common identifiers (emails, phone numbers, UUIDs)
//   - Masks sensitive headers (Authorization, Cookie, Set-Cookie, plus custom)
//   - Leaves selected query parameters verbatim: search text and limits are
//     catalog data, and a digits-only barcode query would otherwise be taken
//     for a phone number
//
// Usage:
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders:     []string{"X-Api-Key"},
//	    KeepQueryParams: []string{"q", "limit"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only so hex segments of UUIDs never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders lists extra headers (case-insensitive) whose values are fully
// replaced with "[REDACTED]", on top of Authorization, Cookie and Set-Cookie.
// KeepQueryParams lists query parameter names whose values are logged as
// sent; every other parameter is pattern-redacted.
type RedactOptions struct {
	MaskHeaders     []string
	KeepQueryParams []string
}

// redact scrubs IDs, then emails, then phone numbers (the loosest pattern).
func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// redactQuery redacts each key=value pair of a raw query string unless its
// key is in keep. Pair order and encoding are preserved.
func redactQuery(raw string, keep map[string]struct{}) string {
	if raw == "" || len(keep) == 0 {
		return redact(raw)
	}
	pairs := strings.Split(raw, "&")
	for i, p := range pairs {
		k, _, _ := strings.Cut(p, "=")
		if _, ok := keep[k]; ok {
			continue
		}
		pairs[i] = redact(p)
	}
	return strings.Join(pairs, "&")
}

// RedactingLogger returns a Gin middleware that attaches a request-scoped
// logger (request_id, method, route, client_id) under the "logger" context
// key and, after the handler runs, logs status, size, latency, the redacted
// query and the scrubbed headers. Level is info, warn for 4xx, error for 5xx
// or when handlers recorded Gin errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	keep := make(map[string]struct{}, len(opts.KeepQueryParams))
	for _, k := range opts.KeepQueryParams {
		keep[k] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		lg := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_id", truncate(c.GetHeader(HeaderClientID), maxClientIDLen)).
			Logger()
		c.Set(loggerKey, &lg)

		safeQuery := truncate(redactQuery(c.Request.URL.RawQuery, keep), maxQueryLogLength)
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		ev := lg.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = lg.Warn()
		}

		ev.
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
