// Lookup HTTP handlers.
//
// This file wires the dispatch endpoint:
//   - POST /lookups/{type}    (run a lookup for a user)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate tagged outcomes into HTTP responses. All policy
// (guards, rate limits, quotas, caching) lives in the dispatcher.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/repo"
	"github.com/datatrace/osint-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// Dispatcher runs lookup requests to a terminal outcome. Implementations
// must be safe for concurrent use and honor the context for cancellation.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, qtype, query string) (*services.Outcome, error)
}

// UserService covers the account operations the HTTP layer consumes.
type UserService interface {
	Register(ctx context.Context, id int64, username, firstName string, referrerID *int64) (*domain.User, bool, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Redeem(ctx context.Context, userID int64, code string) (kind string, amount int64, err error)
	History(ctx context.Context, userID int64, page, pageSize int) ([]domain.QueryRecord, int64, error)
}

// AdminService covers the operator surface.
type AdminService interface {
	Blacklist(ctx context.Context, qtype, identifier string, addedBy int64) error
	Unblacklist(ctx context.Context, qtype, identifier string) error
	Protect(ctx context.Context, number string, addedBy int64) error
	CreateCode(ctx context.Context, code, kind string, amount int64) (string, error)
	InvalidateCache(ctx context.Context, qtype, query string) error
	Stats(ctx context.Context) (*repo.Stats, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// UserAdmin covers account moderation, implemented by the user service.
type UserAdmin interface {
	SetBanned(ctx context.Context, id int64, banned bool) error
	AdjustBalance(ctx context.Context, id int64, balance string, amount int64, op string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for lookups, accounts, and the admin
// surface. It depends on service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	dispatch Dispatcher
	users    UserService
	mod      UserAdmin
	admin    AdminService
}

// New constructs a Handlers instance bound to the given services.
func New(dispatch Dispatcher, users UserService, mod UserAdmin, admin AdminService) *Handlers {
	return &Handlers{dispatch: dispatch, users: users, mod: mod, admin: admin}
}

//
// DTOs
//

// LookupRequest is the JSON payload for running a lookup.
type LookupRequest struct {
	// UserID is the account the lookup is billed against.
	UserID int64 `json:"user_id" binding:"required" example:"123456789"`
	// Query is the raw subject identifier as the user typed it.
	Query string `json:"query" binding:"required" example:"+91 98765 43210"`
}

// LookupResponse is the success shape for a dispatched lookup.
type LookupResponse struct {
	// RecordID references the audit record, when one was written.
	RecordID string `json:"record_id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Result is the source payload (JSON document, passed through opaque).
	Result string `json:"result"`
	// NoData is true for an authoritative "no information found" answer.
	NoData bool `json:"no_data"`
	// Cached is true when the answer came from the result cache.
	Cached bool `json:"cached"`
}

//
// Handlers
//

// Lookup godoc
// @ID          runLookup
// @Summary     Run a lookup
// @Description Dispatches a lookup of the given type for a registered user and returns the result.
// @Tags        Lookups
// @Accept      json
// @Produce     json
//
// @Param       type  path  string                  true  "Query type" Enums(phone, email, upi, pan, ip, vehicle, ifsc, username)
// @Param       body  body  handlers.LookupRequest  true  "Lookup payload"
//
// @Success     200  {object}  handlers.LookupResponse
// @Failure     400  {object}  handlers.ErrorResponse "Invalid query or type"
// @Failure     403  {object}  handlers.ErrorResponse "Banned user or blocked subject"
// @Failure     404  {object}  handlers.ErrorResponse "User not registered"
// @Failure     429  {object}  handlers.ErrorResponse "Rate or quota denial"
// @Failure     502  {object}  handlers.ErrorResponse "Source failed"
// @Failure     503  {object}  handlers.ErrorResponse "Store unavailable"
// @Router      /lookups/{type} [post]
func (h *Handlers) Lookup(c *gin.Context) {
	qtype := c.Param("type")

	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	out, err := h.dispatch.Dispatch(c.Request.Context(), req.UserID, qtype, req.Query)
	if err != nil {
		h.dispatchError(c, err)
		return
	}

	switch out.Kind {
	case services.OutcomeSuccess:
		ok(c, http.StatusOK, LookupResponse{
			RecordID: out.RecordID,
			Result:   out.Payload,
			NoData:   out.Negative,
			Cached:   out.CacheHit,
		})
	case services.OutcomeDenied:
		h.denied(c, out)
	case services.OutcomeFailed:
		fail(c, http.StatusBadGateway, ErrCodeLookupFailed, "lookup source failed, try again later")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "unknown dispatch outcome")
	}
}

// denied maps a denial reason to status and code. Rate and quota denials
// carry Retry-After.
func (h *Handlers) denied(c *gin.Context, out *services.Outcome) {
	switch out.Reason {
	case services.ReasonBanned:
		fail(c, http.StatusForbidden, ErrCodeUserBanned, "account is banned")
	case services.ReasonBlacklisted, services.ReasonProtected:
		fail(c, http.StatusForbidden, ErrCodeQueryBlocked, "this subject cannot be looked up")
	case services.ReasonRateLimited:
		failRetry(c, http.StatusTooManyRequests, ErrCodeRateLimited,
			"rate limit exceeded", int64(out.RetryAfter.Seconds())+1)
	case services.ReasonDailyQuota:
		failRetry(c, http.StatusTooManyRequests, ErrCodeQuotaExceeded,
			"daily free quota exhausted", int64(out.RetryAfter.Seconds())+1)
	default:
		fail(c, http.StatusForbidden, ErrCodeQueryBlocked, "lookup denied")
	}
}

// dispatchError maps dispatcher error returns to HTTP responses.
func (h *Handlers) dispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query is empty, malformed, or of an unsupported type")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not registered")
	case errors.Is(err, services.ErrWritesHalted):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "store is read-only pending operator action")
	case errors.Is(err, repo.ErrBusy):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "store busy, try again")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
