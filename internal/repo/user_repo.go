// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
)

// Balance operations accepted by UpdateCredits and UpdateDiamonds.
const (
	BalanceAdd    = "add"
	BalanceDeduct = "deduct"
	BalanceSet    = "set"
)

// CreateUser inserts a new user row. Callers decide whether a referral reward
// should accompany the insert (see RecordReferral); both belong in one write
// transaction so a crash cannot leave a rewarded referrer without a referral
// row. Returns ErrDuplicate when the user already exists.
func CreateUser(ctx context.Context, db *gorm.DB, id int64, username, firstName string, referrerID *int64) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:           id,
		Username:     username,
		FirstName:    firstName,
		ReferrerID:   referrerID,
		LastActiveAt: now,
		CreatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by ID or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastActive bumps the user's last-seen timestamp.
func TouchLastActive(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_active_at", time.Now().UTC()).Error
}

// SetBanned flips the soft-disable flag. Returns ErrNotFound when no row
// was affected.
func SetBanned(ctx context.Context, db *gorm.DB, id int64, banned bool) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("banned", banned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordReferral inserts the referral row and credits the referrer's counters
// in place. Returns ErrDuplicate when the referred user was already recorded.
func RecordReferral(ctx context.Context, db *gorm.DB, referrerID, referredID int64, reward int64) error {
	ref := &domain.Referral{
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ref).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", referrerID).
		Updates(map[string]any{
			"referred_count": gorm.Expr("referred_count + 1"),
			"diamonds":       gorm.Expr("diamonds + ?", reward),
		}).Error
}

// UpdateCredits mutates the credits balance. Deductions are balance-guarded:
// a deduct that would go negative affects zero rows and returns ErrNotFound,
// which callers should read as "insufficient balance or missing user".
func UpdateCredits(ctx context.Context, db *gorm.DB, id int64, amount int64, op string) error {
	return updateBalance(ctx, db, id, "credits", amount, op)
}

// UpdateDiamonds mutates the diamonds balance with the same semantics as
// UpdateCredits.
func UpdateDiamonds(ctx context.Context, db *gorm.DB, id int64, amount int64, op string) error {
	return updateBalance(ctx, db, id, "diamonds", amount, op)
}

func updateBalance(ctx context.Context, db *gorm.DB, id int64, column string, amount int64, op string) error {
	q := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id)
	var res *gorm.DB
	switch op {
	case BalanceAdd:
		res = q.Update(column, gorm.Expr(column+" + ?", amount))
	case BalanceDeduct:
		res = q.Where(column+" >= ?", amount).
			Update(column, gorm.Expr(column+" - ?", amount))
	case BalanceSet:
		res = q.Update(column, amount)
	default:
		return gorm.ErrInvalidValue
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureDailyWindow resets the user's daily search counter when the stored
// window date differs from today (UTC) and returns the refreshed user.
// The read-check-write runs against the provided handle; wrap in RunInWriteTx
// when racing writers matter.
func EnsureDailyWindow(ctx context.Context, db *gorm.DB, id int64, today string) (*domain.User, error) {
	u, err := GetUser(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if u.LastSearchDate == today {
		return u, nil
	}
	err = db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"daily_search_count": 0,
			"last_search_date":   today,
		}).Error
	if err != nil {
		return nil, err
	}
	u.DailySearchCount = 0
	u.LastSearchDate = today
	return u, nil
}

// IncrementSearchCounters bumps the daily and lifetime counters after a
// dispatched lookup.
func IncrementSearchCounters(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"daily_search_count": gorm.Expr("daily_search_count + 1"),
			"query_count":        gorm.Expr("query_count + 1"),
		}).Error
}

// ListUserIDs returns every registered user ID (broadcast support).
func ListUserIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
