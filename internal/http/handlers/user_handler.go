// User HTTP handlers.
//
// This file exposes REST endpoints for account resources:
//   - POST /users                 (register, idempotent)
//   - GET  /users/{id}            (profile)
//   - GET  /users/{id}/queries    (lookup history, paginated)
//   - POST /redeem                (consume a redeem code)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/services"
	"github.com/datatrace/osint-backend/internal/utils"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for registering an account.
type RegisterRequest struct {
	// ID is the numeric account identifier assigned by the bot transport.
	ID int64 `json:"id" binding:"required" example:"123456789"`
	// Username is the public handle, may be empty.
	Username string `json:"username" example:"alice"`
	// FirstName is the display name, may be empty.
	FirstName string `json:"first_name" example:"Alice"`
	// ReferrerID optionally credits an existing user for the referral.
	ReferrerID *int64 `json:"referrer_id,omitempty" example:"987654321"`
}

// RedeemRequest is the JSON payload for consuming a redeem code.
type RedeemRequest struct {
	UserID int64  `json:"user_id" binding:"required" example:"123456789"`
	Code   string `json:"code" binding:"required" example:"WELCOME1"`
}

// RedeemResponse reports what a consumed code paid out.
type RedeemResponse struct {
	Kind   string `json:"kind" example:"credits"`
	Amount int64  `json:"amount" example:"10"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// HistoryResponse wraps a page of query records and pagination info.
type HistoryResponse struct {
	Queries    []domain.QueryRecord `json:"queries"`
	Pagination Pagination           `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pathUserID parses the {id} path segment as an int64 account ID.
func pathUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a non-zero integer")
		return 0, false
	}
	return id, true
}

//
// Handlers
//

// Register godoc
// @ID          registerUser
// @Summary     Register an account
// @Description Creates the account on first contact; later calls return the existing account.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Register payload"
//
// @Success     200  {object}  domain.User "Already registered"
// @Success     201  {object}  domain.User "Created"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /users [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	u, created, err := h.users.Register(c.Request.Context(),
		req.ID, strings.TrimSpace(req.Username), strings.TrimSpace(req.FirstName), req.ReferrerID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, u)
}

// GetUser godoc
// @ID          getUser
// @Summary     Fetch an account
// @Tags        Users
// @Produce     json
//
// @Param       id  path  int  true  "User ID"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, okID := pathUserID(c)
	if !okID {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not registered")
		return
	}
	ok(c, http.StatusOK, u)
}

// History godoc
// @ID          listUserQueries
// @Summary     List a user's lookup history (paginated)
// @Description Returns a page of the user's query records, newest first.
// @Tags        Users
// @Produce     json
//
// @Param       id         path   int  true  "User ID"
// @Param       page       query  int  false "Page number"    minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /users/{id}/queries [get]
func (h *Handlers) History(c *gin.Context) {
	id, okID := pathUserID(c)
	if !okID {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.users.History(c.Request.Context(), id, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "listing history failed")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, HistoryResponse{
		Queries: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// Redeem godoc
// @ID          redeemCode
// @Summary     Redeem a code
// @Description Consumes a single-use code and credits the user's balance.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RedeemRequest  true  "Redeem payload"
//
// @Success     200  {object}  handlers.RedeemResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request or unknown code"
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Failure     409  {object}  handlers.ErrorResponse "Code already used"
// @Router      /redeem [post]
func (h *Handlers) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	kind, amount, err := h.users.Redeem(c.Request.Context(), req.UserID, strings.TrimSpace(req.Code))
	switch {
	case err == nil:
		ok(c, http.StatusOK, RedeemResponse{Kind: kind, Amount: amount})
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not registered")
	case errors.Is(err, services.ErrInvalidCode):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCode, "unknown code")
	case errors.Is(err, services.ErrCodeUsed):
		fail(c, http.StatusConflict, ErrCodeCodeUsed, "code already used")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "redeem failed")
	}
}
