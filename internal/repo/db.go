// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and the scoped write
// transaction used to serialize all writes against the single-writer store.
package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/datatrace/osint-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation (e.g. an identifier
// that is already blacklisted, or a redeem code that already exists).
var ErrDuplicate = errors.New("duplicate")

// ErrBusy indicates the store's write lock was held by another transaction
// and the bounded retry budget was exhausted. Transient: callers may retry.
var ErrBusy = errors.New("store busy")

// ErrCorrupt indicates the database file failed its integrity check. Fatal
// for writes: operator intervention (restore from backup) is required.
var ErrCorrupt = errors.New("store corrupt")

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs, and
// verifies file integrity. A failed integrity check returns ErrCorrupt so
// the operator sees the condition at startup instead of silent degradation.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Corrupt-on-open is surfaced, never swallowed.
	var integrity string
	if err := db.Raw("PRAGMA integrity_check;").Row().Scan(&integrity); err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(integrity), "ok") {
		return nil, ErrCorrupt
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing instruments the GORM handle with OpenTelemetry query spans.
// Metrics are left to the Prometheus layer, so they are disabled here.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.QueryRecord{},
		&domain.CacheEntry{},
		&domain.Referral{},
		&domain.RedeemCode{},
		&domain.BlacklistEntry{},
		&domain.ProtectedNumber{},
	)
}

// IsBusy reports whether err is a transient SQLite lock/busy condition.
// glebarez/sqlite returns these as plain-text errors, so the check is
// string-based, mirroring how unique violations are detected.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "database is locked") ||
		strings.Contains(low, "database table is locked") ||
		strings.Contains(low, "sqlite_busy")
}

// IsCorrupt reports whether err looks like on-disk corruption detected at
// runtime (as opposed to the integrity gate at open).
func IsCorrupt(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCorrupt) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "database disk image is malformed") ||
		strings.Contains(low, "file is not a database")
}

// isUniqueViolation detects unique-constraint failures across the error
// shapes GORM and glebarez/sqlite produce.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// RunInWriteTx executes fn inside a write transaction, retrying with bounded
// exponential backoff while another writer holds the lock. The lock is
// released on every exit path (commit, rollback on error, panic).
//
// Retry budget: ~5 attempts over a few hundred milliseconds. When the budget
// is exhausted the last busy error is wrapped in ErrBusy so callers can
// distinguish contention from real failures.
func RunInWriteTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	bo := backoff.WithContext(newWriteBackoff(), ctx)

	var attemptErr error
	err := backoff.Retry(func() error {
		attemptErr = db.WithContext(ctx).Transaction(fn)
		if IsBusy(attemptErr) {
			return attemptErr // retryable
		}
		if attemptErr != nil {
			return backoff.Permanent(attemptErr)
		}
		return nil
	}, bo)

	if err != nil && IsBusy(attemptErr) {
		return errors.Join(ErrBusy, attemptErr)
	}
	return err
}

// newWriteBackoff builds the retry policy for contended writes: short initial
// delay, exponential growth, capped total elapsed time.
func newWriteBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return bo
}
