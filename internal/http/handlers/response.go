// Package handlers provides HTTP handler implementations for the lookup API.
//
// This file defines the standard response utilities used across all
// endpoints: the structured error envelope, consistent JSON serialization,
// and helpers for the common success patterns. Both the bot transport and
// operator tooling consume this API, so responses must be uniform and
// machine-friendly.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error formatting and makes sure 5xx responses are
//     logged with request context.
//   - `ok()` and `noContent()` keep success responses consistent.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "rate_limited",
//	  "message": "rate limit exceeded",
//	  "retry_after": 17
//	}
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/datatrace/osint-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: correlation ID echoed from X-Request-ID, to tie client
//     errors to server logs.
//   - Code: stable, machine-readable string (see errors.go constants).
//   - Message: human-readable description, safe to show to end users.
//   - RetryAfter: seconds until the caller may retry; present only on rate
//     and quota denials.
type ErrorResponse struct {
	RequestID  string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code       string `json:"code" example:"not_found"`
	Message    string `json:"message" example:"resource not found"`
	RetryAfter int64  `json:"retry_after,omitempty" example:"17"`
}

// fail aborts the request with a structured error and logs server-side
// errors with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// failRetry is fail() with a Retry-After header and envelope field, used for
// rate-limit and quota denials.
func failRetry(c *gin.Context, status int, code, msg string, retryAfterSec int64) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	c.Header("Retry-After", strconv.FormatInt(retryAfterSec, 10))
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID:  c.Writer.Header().Get("X-Request-ID"),
		Code:       code,
		Message:    msg,
		RetryAfter: retryAfterSec,
	})
}

// Fail is the exported variant of fail() for callers outside this package
// (e.g. router-level fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
