// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for single-use
// redeem codes.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
)

// ErrCodeUsed indicates the redeem code was already consumed.
var ErrCodeUsed = errors.New("code already used")

// CreateRedeemCode issues a new voucher. Codes are stored upper-cased so
// redemption is case-insensitive. Returns ErrDuplicate when the code exists.
func CreateRedeemCode(ctx context.Context, db *gorm.DB, code, kind string, amount int64) error {
	rc := &domain.RedeemCode{
		Code:      strings.ToUpper(code),
		Kind:      kind,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rc).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetRedeemCode fetches a voucher by code (case-insensitive) or returns
// ErrNotFound.
func GetRedeemCode(ctx context.Context, db *gorm.DB, code string) (*domain.RedeemCode, error) {
	var rc domain.RedeemCode
	err := db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// ConsumeRedeemCode marks the voucher as used by userID and credits the
// matching balance, all against the provided handle. Run it inside
// RunInWriteTx: the guarded UPDATE on used_by makes the consume atomic even
// under concurrent redemption attempts.
//
// Returns the voucher's kind and amount on success, ErrNotFound for an
// unknown code, and ErrCodeUsed when another redemption won the race.
func ConsumeRedeemCode(ctx context.Context, db *gorm.DB, userID int64, code string) (kind string, amount int64, err error) {
	rc, err := GetRedeemCode(ctx, db, code)
	if err != nil {
		return "", 0, err
	}
	if rc.UsedBy != nil {
		return "", 0, ErrCodeUsed
	}

	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.RedeemCode{}).
		Where("code = ? AND used_by IS NULL", rc.Code).
		Updates(map[string]any{
			"used_by": userID,
			"used_at": now,
		})
	if res.Error != nil {
		return "", 0, res.Error
	}
	if res.RowsAffected == 0 {
		return "", 0, ErrCodeUsed
	}

	column := "credits"
	if rc.Kind == domain.CodeKindDiamonds {
		column = "diamonds"
	}
	err = db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update(column, gorm.Expr(column+" + ?", rc.Amount)).Error
	if err != nil {
		return "", 0, err
	}
	return rc.Kind, rc.Amount, nil
}
