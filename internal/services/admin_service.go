// Package services – AdminService
//
// Operator-facing maintenance operations: lookup guards (blacklist and
// protected numbers), redeem code issuance, cache invalidation, and
// aggregate statistics.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/cache"
	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/lookup"
	"github.com/datatrace/osint-backend/internal/repo"
)

// AdminService groups operator actions. Cache is optional: when nil, cache
// invalidation reports an error instead of panicking.
type AdminService struct {
	DB    *gorm.DB
	Cache *cache.Cache
}

// Blacklist blocks an identifier. The identifier is normalized with the
// same rules the dispatcher applies, so the guard matches what would be
// looked up.
func (s *AdminService) Blacklist(ctx context.Context, qtype, identifier string, addedBy int64) error {
	norm, ok := lookup.Normalize(qtype, identifier)
	if !ok {
		return ErrInvalidQuery
	}
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		return repo.AddBlacklistEntry(ctx, tx, norm, qtype, addedBy)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicate
	}
	return err
}

// Unblacklist removes a blocked identifier (idempotent).
func (s *AdminService) Unblacklist(ctx context.Context, qtype, identifier string) error {
	norm, ok := lookup.Normalize(qtype, identifier)
	if !ok {
		return ErrInvalidQuery
	}
	return repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		return repo.RemoveBlacklistEntry(ctx, tx, norm)
	})
}

// Protect opts a phone number out of lookups.
func (s *AdminService) Protect(ctx context.Context, number string, addedBy int64) error {
	norm, ok := lookup.Normalize(lookup.TypePhone, number)
	if !ok {
		return ErrInvalidQuery
	}
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		return repo.AddProtectedNumber(ctx, tx, norm, addedBy)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicate
	}
	return err
}

// CreateCode issues a redeem code. An empty code generates a random one.
// Returns the stored (upper-cased) code.
func (s *AdminService) CreateCode(ctx context.Context, code, kind string, amount int64) (string, error) {
	if kind != domain.CodeKindCredits && kind != domain.CodeKindDiamonds {
		return "", ErrInvalidQuery
	}
	if amount <= 0 {
		return "", ErrInvalidQuery
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = uuid.NewString()[:8]
	}
	code = strings.ToUpper(code)

	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		return repo.CreateRedeemCode(ctx, tx, code, kind, amount)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// InvalidateCache drops the cached result for (qtype, query). Safe to call
// repeatedly: invalidating an absent key is a no-op.
func (s *AdminService) InvalidateCache(ctx context.Context, qtype, query string) error {
	if s.Cache == nil {
		return errors.New("cache not configured")
	}
	norm, ok := lookup.Normalize(qtype, query)
	if !ok {
		return ErrInvalidQuery
	}
	return s.Cache.Invalidate(ctx, lookup.Key(qtype, norm))
}

// Stats returns the aggregate totals for the operator dashboard.
func (s *AdminService) Stats(ctx context.Context) (*repo.Stats, error) {
	return repo.GetStats(ctx, s.DB)
}

// ListUserIDs returns every registered account ID in ascending order, for
// operator broadcasts and audits.
func (s *AdminService) ListUserIDs(ctx context.Context) ([]int64, error) {
	return repo.ListUserIDs(ctx, s.DB)
}
