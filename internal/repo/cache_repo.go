// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for persisted
// cache entries. The cache layer in internal/cache owns the TTL policy and
// in-flight deduplication; these functions only move rows.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/datatrace/osint-backend/internal/domain"
)

// GetCacheEntry fetches a non-expired entry by key or returns ErrNotFound.
// Expired rows are treated as absent; they are removed lazily by
// PurgeExpiredCacheEntries rather than on read, keeping the read path
// write-free.
func GetCacheEntry(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.CacheEntry, error) {
	var e domain.CacheEntry
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertCacheEntry stores or supersedes the entry for its key. Refreshes
// replace the whole row (payload, negative flag, timestamps) so readers never
// observe a half-updated entry.
func UpsertCacheEntry(ctx context.Context, db *gorm.DB, e *domain.CacheEntry) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(e).Error
}

// DeleteCacheEntry removes the entry for key. Deleting an absent key is a
// no-op, which makes invalidation idempotent.
func DeleteCacheEntry(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&domain.CacheEntry{}).Error
}

// PurgeExpiredCacheEntries deletes rows whose expiry is at or before now and
// reports how many were removed.
func PurgeExpiredCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.CacheEntry{})
	return res.RowsAffected, res.Error
}
