// Package services – UserService
//
// This file implements UserService, which manages account registration,
// referral rewards, balance mutations, and redeem codes. Registration is
// idempotent (first contact creates, later contacts return the existing
// row), and all multi-row mutations run inside the store's scoped write
// transaction so a crash can never half-apply a referral or redemption.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/repo"
)

// UserService provides account-level operations. It enforces referral and
// balance rules and ensures soft-disable semantics (users are banned, never
// deleted).
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// ReferralReward is the diamond payout per successful referral.
	ReferralReward int64
}

// NewUserService constructs a UserService with the default referral reward.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db, ReferralReward: 1}
}

// Register creates the account on first contact and returns it, along with
// whether it was created now. A valid referrer earns the referral reward
// exactly once per referred user; self-referrals and unknown referrers are
// silently ignored, matching the forgiving intake the bot surface needs.
func (s *UserService) Register(ctx context.Context, id int64, username, firstName string, referrerID *int64) (*domain.User, bool, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(attribute.Int64("user.id", id)),
	)
	defer span.End()

	if referrerID != nil && *referrerID == id {
		referrerID = nil
	}
	if referrerID != nil {
		if _, err := repo.GetUser(ctx, s.DB, *referrerID); errors.Is(err, repo.ErrNotFound) {
			referrerID = nil
		} else if err != nil {
			return nil, false, err
		}
	}

	var u *domain.User
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		var terr error
		u, terr = repo.CreateUser(ctx, tx, id, username, firstName, referrerID)
		if terr != nil {
			return terr
		}
		if referrerID != nil {
			terr = repo.RecordReferral(ctx, tx, *referrerID, id, s.ReferralReward)
			if errors.Is(terr, repo.ErrDuplicate) {
				return nil
			}
			return terr
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		existing, gerr := repo.GetUser(ctx, s.DB, id)
		if gerr != nil {
			return nil, false, gerr
		}
		if terr := repo.TouchLastActive(ctx, s.DB, id); terr != nil {
			return nil, false, terr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// Get fetches an account by ID.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// SetBanned flips the soft-disable flag.
func (s *UserService) SetBanned(ctx context.Context, id int64, banned bool) error {
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		return repo.SetBanned(ctx, tx, id, banned)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// AdjustBalance applies op ("add", "deduct", "set") of amount to the named
// balance ("credits" or "diamonds"). Deductions that would go negative
// return ErrInsufficientBalance.
func (s *UserService) AdjustBalance(ctx context.Context, id int64, balance string, amount int64, op string) error {
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		switch balance {
		case "credits":
			return repo.UpdateCredits(ctx, tx, id, amount, op)
		case "diamonds":
			return repo.UpdateDiamonds(ctx, tx, id, amount, op)
		default:
			return gorm.ErrInvalidValue
		}
	})
	if errors.Is(err, repo.ErrNotFound) {
		if op == repo.BalanceDeduct {
			return ErrInsufficientBalance
		}
		return ErrUserNotFound
	}
	return err
}

// Redeem consumes a single-use code for the user and returns what it paid
// out. Unknown codes map to ErrInvalidCode, spent codes to ErrCodeUsed.
func (s *UserService) Redeem(ctx context.Context, userID int64, code string) (kind string, amount int64, err error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Redeem",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	if strings.TrimSpace(code) == "" {
		return "", 0, ErrInvalidCode
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return "", 0, err
	}

	err = repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		var terr error
		kind, amount, terr = repo.ConsumeRedeemCode(ctx, tx, userID, code)
		return terr
	})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return "", 0, ErrInvalidCode
	case errors.Is(err, repo.ErrCodeUsed):
		return "", 0, ErrCodeUsed
	case err != nil:
		return "", 0, err
	}
	return kind, amount, nil
}

// History returns a page of the user's query records, newest first, plus
// the total count. Page defaults follow the transport's conventions.
func (s *UserService) History(ctx context.Context, userID int64, page, pageSize int) ([]domain.QueryRecord, int64, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := s.Get(ctx, userID); err != nil {
		return nil, 0, err
	}
	total, err := repo.CountQueriesByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.QueryRecord{}, 0, nil
	}
	items, err := repo.ListQueriesByUserPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}
