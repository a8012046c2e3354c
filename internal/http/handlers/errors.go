// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// This file centralizes the symbolic error codes mapped to HTTP responses
// via the `fail()` helper. The codes give the bot transport a stable,
// machine-readable taxonomy that supplements the human-readable message.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Domain codes (user_banned, query_blocked, quota_exceeded, ...) carry
//     policy decisions that status alone cannot convey: a blocked query and
//     an exhausted quota both deny the lookup but the bot renders them very
//     differently.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeUserBanned       = "user_banned"
	ErrCodeQueryBlocked     = "query_blocked"
	ErrCodeQuotaExceeded    = "quota_exceeded"
	ErrCodeLookupFailed     = "lookup_failed"
	ErrCodeInvalidCode      = "invalid_code"
	ErrCodeCodeUsed         = "code_used"
	ErrCodeInsufficientBal  = "insufficient_balance"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
