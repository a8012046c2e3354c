package repo

import (
	"context"
	"errors"
	"testing"
)

func TestBlacklist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := AddBlacklistEntry(ctx, db, "9876543210", "phone", 42); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := AddBlacklistEntry(ctx, db, "9876543210", "phone", 42); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate add: err = %v", err)
	}

	listed, err := IsBlacklisted(ctx, db, "9876543210")
	if err != nil || !listed {
		t.Fatalf("IsBlacklisted = %v, %v", listed, err)
	}
	listed, err = IsBlacklisted(ctx, db, "other")
	if err != nil || listed {
		t.Fatalf("unlisted identifier reported blocked")
	}

	if err := RemoveBlacklistEntry(ctx, db, "9876543210"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveBlacklistEntry(ctx, db, "9876543210"); err != nil {
		t.Fatalf("idempotent remove: %v", err)
	}
	if listed, _ = IsBlacklisted(ctx, db, "9876543210"); listed {
		t.Fatal("identifier still blocked after removal")
	}
}

func TestProtectedNumbers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := AddProtectedNumber(ctx, db, "919876543210", 42); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := AddProtectedNumber(ctx, db, "919876543210", 42); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate add: err = %v", err)
	}
	prot, err := IsProtectedNumber(ctx, db, "919876543210")
	if err != nil || !prot {
		t.Fatalf("IsProtectedNumber = %v, %v", prot, err)
	}
	if prot, _ = IsProtectedNumber(ctx, db, "1"); prot {
		t.Fatal("unprotected number reported protected")
	}
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := GetStats(ctx, db)
	if err != nil {
		t.Fatalf("empty stats: %v", err)
	}
	if s.TotalUsers != 0 || s.TotalDiamonds != 0 || s.TotalCredits != 0 {
		t.Fatalf("empty store reported non-zero stats: %+v", s)
	}

	for id := int64(1); id <= 3; id++ {
		if _, err := CreateUser(ctx, db, id, "", "", nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := SetBanned(ctx, db, 2, true); err != nil {
		t.Fatal(err)
	}
	if err := UpdateCredits(ctx, db, 1, 7, BalanceAdd); err != nil {
		t.Fatal(err)
	}
	if err := RecordReferral(ctx, db, 1, 3, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateQueryRecord(ctx, db, 1, "phone", "9876543210"); err != nil {
		t.Fatal(err)
	}

	s, err = GetStats(ctx, db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalUsers != 3 || s.BannedUsers != 1 || s.TotalReferrals != 1 ||
		s.TotalSearches != 1 || s.TotalCredits != 7 || s.TotalDiamonds != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
}
