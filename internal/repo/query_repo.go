// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// QueryRecord audit trail.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
)

// CreateQueryRecord inserts a pending audit row for a dispatched lookup.
// The record ID is a randomly generated UUID and CreatedAt is set to UTC.
func CreateQueryRecord(ctx context.Context, db *gorm.DB, userID int64, qtype, query string) (*domain.QueryRecord, error) {
	rec := &domain.QueryRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      qtype,
		Query:     query,
		Status:    domain.QueryStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// FinalizeQueryRecord transitions a pending record to success or failed and
// stores the inline result payload. Finalization happens at most once: rows
// already finalized are not matched, and ErrNotFound is returned so the
// caller can detect the violated invariant.
func FinalizeQueryRecord(ctx context.Context, db *gorm.DB, id, status, result string) error {
	res := db.WithContext(ctx).
		Model(&domain.QueryRecord{}).
		Where("id = ? AND status = ?", id, domain.QueryStatusPending).
		Updates(map[string]any{
			"status": status,
			"result": result,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetQueryRecord fetches a record by ID or returns ErrNotFound.
func GetQueryRecord(ctx context.Context, db *gorm.DB, id string) (*domain.QueryRecord, error) {
	var rec domain.QueryRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountQueriesByUser returns the total number of records owned by userID.
func CountQueriesByUser(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.QueryRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListQueriesByUserPage returns a page of records for userID, most recent
// first. The caller computes offset and limit.
func ListQueriesByUserPage(ctx context.Context, db *gorm.DB, userID int64, offset, limit int) ([]domain.QueryRecord, error) {
	var out []domain.QueryRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
