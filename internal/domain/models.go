// Package domain defines the persistence models for users, query records,
// cache entries, and the supporting account-economy tables. These types are
// mapped with GORM and form the core data layer of the lookup backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Query record statuses. A record is created as pending and finalized exactly
// once as success or failed; finalized records are never mutated again.
const (
	QueryStatusPending = "pending"
	QueryStatusSuccess = "success"
	QueryStatusFailed  = "failed"
)

// Redeem code kinds.
const (
	CodeKindCredits  = "credits"
	CodeKindDiamonds = "diamonds"
)

// User represents a bot account keyed by the platform-assigned integer ID.
// Users are created on first contact and soft-disabled (banned) rather than
// deleted, so query history always resolves to an owner.
//
// Fields:
//   - ID: platform-assigned integer identifier (not auto-incremented).
//   - Username / FirstName: profile snapshot taken at registration.
//   - Credits / Diamonds: spendable balances; mutations are balance-guarded.
//   - ReferrerID / ReferredCount: referral bookkeeping.
//   - Banned: soft-disable flag; banned users are refused before any lookup.
//   - QueryCount: lifetime number of dispatched lookups.
//   - DailySearchCount / LastSearchDate: free-quota window state, reset when
//     the date (UTC, "2006-01-02") changes.
//   - LastActiveAt: bumped on every inbound request.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (rows are retained for audit).
type User struct {
	ID               int64          `json:"id"                 gorm:"primaryKey;autoIncrement:false"`
	Username         string         `json:"username"           gorm:"type:varchar(64)"`
	FirstName        string         `json:"first_name"         gorm:"type:varchar(128)"`
	Credits          int64          `json:"credits"            gorm:"not null;default:0"`
	Diamonds         int64          `json:"diamonds"           gorm:"not null;default:0"`
	ReferrerID       *int64         `json:"referrer_id,omitempty"`
	ReferredCount    int            `json:"referred_count"     gorm:"not null;default:0"`
	Banned           bool           `json:"banned"             gorm:"not null;default:false"`
	QueryCount       int64          `json:"query_count"        gorm:"not null;default:0"`
	DailySearchCount int            `json:"daily_search_count" gorm:"not null;default:0"`
	LastSearchDate   string         `json:"last_search_date"   gorm:"type:varchar(10)"`
	LastActiveAt     time.Time      `json:"last_active_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                  gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// QueryRecord is the immutable audit row written for every dispatched lookup.
// It references an existing User, carries the normalized query and its type,
// and stores the result payload inline once the lookup finalizes.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: owner of the request; indexed for history listings.
//   - Type: lookup family (e.g. "phone", "upi", "ip").
//   - Query: normalized query string (never the raw user input).
//   - Status: pending | success | failed (enforced by DB constraint).
//   - Result: inline result payload; empty until finalized.
//   - CreatedAt: receipt time, part of the history index.
type QueryRecord struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    int64     `json:"user_id"    gorm:"not null;index:idx_user_queries,priority:1"`
	Type      string    `json:"type"       gorm:"type:varchar(32);not null"`
	Query     string    `json:"query"      gorm:"type:text;not null"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;check:status IN ('pending','success','failed')"`
	Result    string    `json:"result,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_queries,priority:2"`

	// User is the owning account. Records are cascade-deleted only if the
	// user row is ever purged (which normal operation never does).
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for QueryRecord.
func (QueryRecord) TableName() string { return "query_records" }

// CacheEntry is the persisted form of a cached lookup result, keyed by the
// namespaced "(type, normalized query)" pair. Entries are superseded by
// upsert on refresh, never mutated in place, and expired rows are treated as
// absent by the cache layer. The store remains the source of truth: the
// in-process cache is always reconstructible from these rows.
type CacheEntry struct {
	Key       string    `json:"key"        gorm:"type:varchar(512);primaryKey"`
	Type      string    `json:"type"       gorm:"type:varchar(32);not null"`
	Query     string    `json:"query"      gorm:"type:text;not null"`
	Payload   string    `json:"payload"    gorm:"type:text"`
	Negative  bool      `json:"negative"   gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "cache_entries" }

// Referral records that ReferredID joined via ReferrerID's invite link.
// At most one row exists per referred user.
type Referral struct {
	ID         uint      `json:"id"          gorm:"primaryKey"`
	ReferrerID int64     `json:"referrer_id" gorm:"not null;index"`
	ReferredID int64     `json:"referred_id" gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Referral.
func (Referral) TableName() string { return "referrals" }

// RedeemCode is an admin-issued, single-use voucher for credits or diamonds.
// Consumption sets UsedBy/UsedAt inside the same transaction that credits the
// balance, so a code can never pay out twice.
type RedeemCode struct {
	Code      string     `json:"code"    gorm:"type:varchar(64);primaryKey"`
	Kind      string     `json:"kind"    gorm:"type:varchar(16);not null;check:kind IN ('credits','diamonds')"`
	Amount    int64      `json:"amount"  gorm:"not null"`
	UsedBy    *int64     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for RedeemCode.
func (RedeemCode) TableName() string { return "redeem_codes" }

// BlacklistEntry refuses lookups for a specific identifier within a type
// namespace. Checked before cache and rate limiting so blocked queries
// consume nothing.
type BlacklistEntry struct {
	ID         uint      `json:"id"         gorm:"primaryKey"`
	Identifier string    `json:"identifier" gorm:"type:varchar(256);not null;uniqueIndex"`
	Type       string    `json:"type"       gorm:"type:varchar(32)"`
	AddedBy    int64     `json:"added_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for BlacklistEntry.
func (BlacklistEntry) TableName() string { return "blacklist" }

// ProtectedNumber marks a phone number whose owner opted out of lookups.
type ProtectedNumber struct {
	ID        uint      `json:"id"      gorm:"primaryKey"`
	Number    string    `json:"number"  gorm:"type:varchar(32);not null;uniqueIndex"`
	AddedBy   int64     `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ProtectedNumber.
func (ProtectedNumber) TableName() string { return "protected_numbers" }
