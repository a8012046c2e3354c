// Admin HTTP handlers.
//
// This file exposes the operator surface:
//   - POST   /admin/users/{id}/ban       (soft-disable)
//   - POST   /admin/users/{id}/unban
//   - POST   /admin/users/{id}/balance   (adjust credits or diamonds)
//   - POST   /admin/codes                (issue a redeem code)
//   - POST   /admin/blacklist            (block an identifier)
//   - DELETE /admin/blacklist            (unblock)
//   - POST   /admin/protected            (opt a phone number out)
//   - DELETE /admin/cache                (invalidate one cached result)
//   - GET    /admin/stats                (aggregate totals)
//   - GET    /admin/users                (all registered account IDs)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datatrace/osint-backend/internal/services"
)

//
// DTOs
//

// BalanceRequest adjusts one of a user's balances.
type BalanceRequest struct {
	// Balance names the account: "credits" or "diamonds".
	Balance string `json:"balance" binding:"required" example:"credits"`
	// Op is "add", "deduct", or "set".
	Op string `json:"op" binding:"required" example:"add"`
	// Amount must be >= 0.
	Amount int64 `json:"amount" example:"10"`
}

// CreateCodeRequest issues a redeem code. An empty Code generates one.
type CreateCodeRequest struct {
	Code   string `json:"code" example:"WELCOME1"`
	Kind   string `json:"kind" binding:"required" example:"credits"`
	Amount int64  `json:"amount" binding:"required" example:"10"`
}

// CreateCodeResponse returns the stored code.
type CreateCodeResponse struct {
	Code string `json:"code" example:"WELCOME1"`
}

// UserIDsResponse lists registered account IDs.
type UserIDsResponse struct {
	UserIDs []int64 `json:"user_ids"`
	Total   int     `json:"total" example:"2"`
}

// GuardRequest names a lookup subject for the blacklist or the protected
// list. AddedBy records which operator made the change.
type GuardRequest struct {
	Type       string `json:"type" example:"phone"`
	Identifier string `json:"identifier" binding:"required" example:"+919876543210"`
	AddedBy    int64  `json:"added_by" example:"42"`
}

//
// Handlers
//

// Ban godoc
// @ID          banUser
// @Summary     Ban an account
// @Description Soft-disables the user. History and balances survive; lookups are denied.
// @Tags        Admin
// @Produce     json
// @Param       id  path  int  true  "User ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Router      /admin/users/{id}/ban [post]
func (h *Handlers) Ban(c *gin.Context) { h.setBanned(c, true) }

// Unban godoc
// @ID          unbanUser
// @Summary     Unban an account
// @Tags        Admin
// @Produce     json
// @Param       id  path  int  true  "User ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Router      /admin/users/{id}/unban [post]
func (h *Handlers) Unban(c *gin.Context) { h.setBanned(c, false) }

func (h *Handlers) setBanned(c *gin.Context, banned bool) {
	id, okID := pathUserID(c)
	if !okID {
		return
	}
	err := h.mod.SetBanned(c.Request.Context(), id, banned)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not registered")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "ban update failed")
	}
}

// AdjustBalance godoc
// @ID          adjustBalance
// @Summary     Adjust a user's balance
// @Description Adds to, deducts from, or sets the named balance. Deductions never go negative.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       id    path  int                      true  "User ID"
// @Param       body  body  handlers.BalanceRequest  true  "Adjustment"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Failure     409  {object} handlers.ErrorResponse "Insufficient balance"
// @Router      /admin/users/{id}/balance [post]
func (h *Handlers) AdjustBalance(c *gin.Context) {
	id, okID := pathUserID(c)
	if !okID {
		return
	}
	var req BalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	err := h.mod.AdjustBalance(c.Request.Context(), id, req.Balance, req.Amount, req.Op)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInsufficientBalance):
		fail(c, http.StatusConflict, ErrCodeInsufficientBal, "insufficient balance")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not registered")
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid balance adjustment")
	}
}

// CreateCode godoc
// @ID          createCode
// @Summary     Issue a redeem code
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateCodeRequest  true  "Code spec"
// @Success     201  {object} handlers.CreateCodeResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Code exists"
// @Router      /admin/codes [post]
func (h *Handlers) CreateCode(c *gin.Context) {
	var req CreateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	code, err := h.admin.CreateCode(c.Request.Context(), req.Code, strings.ToLower(req.Kind), req.Amount)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, CreateCodeResponse{Code: code})
	case errors.Is(err, services.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, "code already exists")
	case errors.Is(err, services.ErrInvalidQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind must be credits or diamonds and amount > 0")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "issuing code failed")
	}
}

// AddBlacklist godoc
// @ID          addBlacklist
// @Summary     Block an identifier from being looked up
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.GuardRequest  true  "Identifier"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Already blocked"
// @Router      /admin/blacklist [post]
func (h *Handlers) AddBlacklist(c *gin.Context) {
	var req GuardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.admin.Blacklist(c.Request.Context(), req.Type, req.Identifier, req.AddedBy)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, "identifier already blocked")
	case errors.Is(err, services.ErrInvalidQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "identifier does not match the given type")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "blacklist update failed")
	}
}

// RemoveBlacklist godoc
// @ID          removeBlacklist
// @Summary     Unblock an identifier
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.GuardRequest  true  "Identifier"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /admin/blacklist [delete]
func (h *Handlers) RemoveBlacklist(c *gin.Context) {
	var req GuardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.admin.Unblacklist(c.Request.Context(), req.Type, req.Identifier)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "identifier does not match the given type")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "blacklist update failed")
	}
}

// AddProtected godoc
// @ID          addProtected
// @Summary     Opt a phone number out of lookups
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.GuardRequest  true  "Phone number"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Already protected"
// @Router      /admin/protected [post]
func (h *Handlers) AddProtected(c *gin.Context) {
	var req GuardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.admin.Protect(c.Request.Context(), req.Identifier, req.AddedBy)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, "number already protected")
	case errors.Is(err, services.ErrInvalidQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "not a valid phone number")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "protected list update failed")
	}
}

// InvalidateCache godoc
// @ID          invalidateCache
// @Summary     Drop one cached lookup result
// @Description Removes the cache entry for (type, query). Idempotent.
// @Tags        Admin
// @Produce     json
// @Param       type   query  string  true  "Query type"
// @Param       query  query  string  true  "Subject identifier"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /admin/cache [delete]
func (h *Handlers) InvalidateCache(c *gin.Context) {
	qtype := c.Query("type")
	query := c.Query("query")
	if qtype == "" || query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type and query are required")
		return
	}
	err := h.admin.InvalidateCache(c.Request.Context(), qtype, query)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "identifier does not match the given type")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cache invalidation failed")
	}
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List all registered account IDs
// @Description Returns every account ID in ascending order, for operator broadcasts.
// @Tags        Admin
// @Produce     json
// @Success     200  {object} handlers.UserIDsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	ids, err := h.admin.ListUserIDs(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "user listing failed")
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	ok(c, http.StatusOK, UserIDsResponse{UserIDs: ids, Total: len(ids)})
}

// GetStats godoc
// @ID          getStats
// @Summary     Aggregate service statistics
// @Tags        Admin
// @Produce     json
// @Success     200  {object} repo.Stats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "stats query failed")
		return
	}
	ok(c, http.StatusOK, st)
}
