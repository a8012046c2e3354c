// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate statistics query used by
// the admin surface.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
)

// Stats holds the aggregate totals reported to operators.
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalSearches  int64 `json:"total_searches"`
	BannedUsers    int64 `json:"banned_users"`
	TotalReferrals int64 `json:"total_referrals"`
	TotalDiamonds  int64 `json:"total_diamonds"`
	TotalCredits   int64 `json:"total_credits"`
	CacheEntries   int64 `json:"cache_entries"`
}

// GetStats computes the aggregate totals in a handful of lightweight
// queries. Sums use COALESCE so empty tables report zero, not NULL.
func GetStats(ctx context.Context, db *gorm.DB) (*Stats, error) {
	var s Stats
	q := db.WithContext(ctx)

	if err := q.Model(&domain.User{}).Count(&s.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&domain.QueryRecord{}).Count(&s.TotalSearches).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&domain.User{}).Where("banned = ?", true).Count(&s.BannedUsers).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&domain.Referral{}).Count(&s.TotalReferrals).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&domain.User{}).
		Select("COALESCE(SUM(diamonds),0)").Scan(&s.TotalDiamonds).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&domain.User{}).
		Select("COALESCE(SUM(credits),0)").Scan(&s.TotalCredits).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&domain.CacheEntry{}).Count(&s.CacheEntries).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
