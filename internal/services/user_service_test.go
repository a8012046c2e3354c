package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/repo"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return NewUserService(db), db
}

func TestRegister_Idempotent(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()

	u, created, err := s.Register(ctx, 1, "alice", "Alice", nil)
	if err != nil || !created {
		t.Fatalf("first register: created=%v err=%v", created, err)
	}
	if u.ID != 1 || u.Username != "alice" {
		t.Fatalf("unexpected user %+v", u)
	}

	u, created, err = s.Register(ctx, 1, "alice-renamed", "Alice", nil)
	if err != nil || created {
		t.Fatalf("second register: created=%v err=%v", created, err)
	}
	// Existing row is returned unchanged.
	if u.Username != "alice" {
		t.Fatalf("existing account rewritten: %+v", u)
	}
}

func TestRegister_ReferralRewardOnce(t *testing.T) {
	s, db := newUserService(t)
	ctx := context.Background()

	if _, _, err := s.Register(ctx, 1, "ref", "Ref", nil); err != nil {
		t.Fatal(err)
	}
	ref := int64(1)
	if _, _, err := s.Register(ctx, 2, "new", "New", &ref); err != nil {
		t.Fatal(err)
	}

	u, _ := repo.GetUser(ctx, db, 1)
	if u.ReferredCount != 1 || u.Diamonds != s.ReferralReward {
		t.Fatalf("referrer not rewarded: %+v", u)
	}

	// Re-registering the referred user must not pay again.
	if _, _, err := s.Register(ctx, 2, "new", "New", &ref); err != nil {
		t.Fatal(err)
	}
	u, _ = repo.GetUser(ctx, db, 1)
	if u.ReferredCount != 1 || u.Diamonds != s.ReferralReward {
		t.Fatalf("referrer rewarded twice: %+v", u)
	}
}

func TestRegister_BadReferrersIgnored(t *testing.T) {
	s, db := newUserService(t)
	ctx := context.Background()

	self := int64(7)
	if _, created, err := s.Register(ctx, 7, "s", "S", &self); err != nil || !created {
		t.Fatalf("self-referral register: created=%v err=%v", created, err)
	}
	unknown := int64(999)
	if _, created, err := s.Register(ctx, 8, "u", "U", &unknown); err != nil || !created {
		t.Fatalf("unknown-referrer register: created=%v err=%v", created, err)
	}

	for _, id := range []int64{7, 8} {
		u, _ := repo.GetUser(ctx, db, id)
		if u.ReferrerID != nil {
			t.Fatalf("user %d kept invalid referrer %v", id, *u.ReferrerID)
		}
	}
}

func TestAdjustBalance(t *testing.T) {
	s, db := newUserService(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, db, 1, "a", "A", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.AdjustBalance(ctx, 1, "credits", 10, repo.BalanceAdd); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AdjustBalance(ctx, 1, "credits", 4, repo.BalanceDeduct); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if err := s.AdjustBalance(ctx, 1, "diamonds", 2, repo.BalanceSet); err != nil {
		t.Fatalf("set: %v", err)
	}

	u, _ := repo.GetUser(ctx, db, 1)
	if u.Credits != 6 || u.Diamonds != 2 {
		t.Fatalf("balances = %d/%d; want 6/2", u.Credits, u.Diamonds)
	}

	if err := s.AdjustBalance(ctx, 1, "credits", 100, repo.BalanceDeduct); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: err = %v", err)
	}
	if err := s.AdjustBalance(ctx, 404, "credits", 1, repo.BalanceAdd); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
	if err := s.AdjustBalance(ctx, 1, "karma", 1, repo.BalanceAdd); err == nil {
		t.Fatal("unknown balance accepted")
	}
}

func TestSetBanned(t *testing.T) {
	s, db := newUserService(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, db, 1, "a", "A", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.SetBanned(ctx, 1, true); err != nil {
		t.Fatalf("ban: %v", err)
	}
	u, _ := repo.GetUser(ctx, db, 1)
	if !u.Banned {
		t.Fatal("ban flag not set")
	}
	if err := s.SetBanned(ctx, 1, false); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if err := s.SetBanned(ctx, 404, true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
}

func TestRedeem(t *testing.T) {
	s, db := newUserService(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, db, 1, "a", "A", nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateRedeemCode(ctx, db, "BONUS", domain.CodeKindCredits, 5); err != nil {
		t.Fatal(err)
	}

	kind, amount, err := s.Redeem(ctx, 1, "bonus")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if kind != domain.CodeKindCredits || amount != 5 {
		t.Fatalf("payout = %s/%d", kind, amount)
	}
	u, _ := repo.GetUser(ctx, db, 1)
	if u.Credits != 5 {
		t.Fatalf("credits = %d; want 5", u.Credits)
	}

	if _, _, err := s.Redeem(ctx, 1, "BONUS"); !errors.Is(err, ErrCodeUsed) {
		t.Fatalf("spent code: err = %v", err)
	}
	if _, _, err := s.Redeem(ctx, 1, "NOPE"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("unknown code: err = %v", err)
	}
	if _, _, err := s.Redeem(ctx, 1, "  "); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("blank code: err = %v", err)
	}
	if _, _, err := s.Redeem(ctx, 404, "BONUS"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
}

func TestHistory(t *testing.T) {
	s, db := newUserService(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, db, 1, "a", "A", nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := repo.CreateQueryRecord(ctx, db, 1, "phone", "987654321"+string(rune('0'+i))); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := s.History(ctx, 1, 1, 3)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 5 || len(items) != 3 {
		t.Fatalf("page 1: total=%d len=%d", total, len(items))
	}
	items, _, err = s.History(ctx, 1, 2, 3)
	if err != nil || len(items) != 2 {
		t.Fatalf("page 2: len=%d err=%v", len(items), err)
	}

	// Out-of-range page is empty, not an error.
	items, total, err = s.History(ctx, 1, 9, 3)
	if err != nil || total != 5 || len(items) != 0 {
		t.Fatalf("page 9: total=%d len=%d err=%v", total, len(items), err)
	}

	if _, _, err := s.History(ctx, 404, 1, 3); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
}
