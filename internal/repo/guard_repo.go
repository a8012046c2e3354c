// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the lookup
// guards: the identifier blacklist and the protected-number opt-out list.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
)

// AddBlacklistEntry records an identifier as blocked. Returns ErrDuplicate
// when the identifier is already listed.
func AddBlacklistEntry(ctx context.Context, db *gorm.DB, identifier, qtype string, addedBy int64) error {
	e := &domain.BlacklistEntry{
		Identifier: identifier,
		Type:       qtype,
		AddedBy:    addedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// RemoveBlacklistEntry unblocks an identifier. Removing an absent identifier
// is a no-op.
func RemoveBlacklistEntry(ctx context.Context, db *gorm.DB, identifier string) error {
	return db.WithContext(ctx).
		Where("identifier = ?", identifier).
		Delete(&domain.BlacklistEntry{}).Error
}

// IsBlacklisted reports whether the identifier is blocked.
func IsBlacklisted(ctx context.Context, db *gorm.DB, identifier string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.BlacklistEntry{}).
		Where("identifier = ?", identifier).
		Count(&n).Error
	return n > 0, err
}

// AddProtectedNumber records a phone number opt-out. Returns ErrDuplicate
// when the number is already protected.
func AddProtectedNumber(ctx context.Context, db *gorm.DB, number string, addedBy int64) error {
	p := &domain.ProtectedNumber{
		Number:    number,
		AddedBy:   addedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// IsProtectedNumber reports whether lookups for number are refused.
func IsProtectedNumber(ctx context.Context, db *gorm.DB, number string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ProtectedNumber{}).
		Where("number = ?", number).
		Count(&n).Error
	return n > 0, err
}
