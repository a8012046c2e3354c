package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/datatrace/osint-backend/internal/domain"
)

func TestQueryRecordLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateUser(ctx, db, 1, "a", "A", nil); err != nil {
		t.Fatal(err)
	}

	rec, err := CreateQueryRecord(ctx, db, 1, "phone", "9876543210")
	if err != nil {
		t.Fatalf("CreateQueryRecord: %v", err)
	}
	if rec.Status != domain.QueryStatusPending || rec.ID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := FinalizeQueryRecord(ctx, db, rec.ID, domain.QueryStatusSuccess, `{"ok":true}`); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	got, err := GetQueryRecord(ctx, db, rec.ID)
	if err != nil {
		t.Fatalf("GetQueryRecord: %v", err)
	}
	if got.Status != domain.QueryStatusSuccess || got.Result != `{"ok":true}` {
		t.Fatalf("record not finalized: %+v", got)
	}

	// Finalization is at most once.
	err = FinalizeQueryRecord(ctx, db, rec.ID, domain.QueryStatusFailed, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second finalize: err = %v; want ErrNotFound", err)
	}
	got, _ = GetQueryRecord(ctx, db, rec.ID)
	if got.Status != domain.QueryStatusSuccess {
		t.Fatalf("second finalize overwrote status: %+v", got)
	}
}

func TestListQueriesByUserPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateUser(ctx, db, 1, "a", "A", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateUser(ctx, db, 2, "b", "B", nil); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := CreateQueryRecord(ctx, db, 1, "email", "a@example.com"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := CreateQueryRecord(ctx, db, 2, "email", "b@example.com"); err != nil {
		t.Fatal(err)
	}

	total, err := CountQueriesByUser(ctx, db, 1)
	if err != nil || total != 5 {
		t.Fatalf("count = %d, %v; want 5", total, err)
	}

	page, err := ListQueriesByUserPage(ctx, db, 1, 0, 3)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page 1 len = %d", len(page))
	}
	for _, r := range page {
		if r.UserID != 1 {
			t.Fatalf("foreign record leaked into page: %+v", r)
		}
	}

	rest, err := ListQueriesByUserPage(ctx, db, 1, 3, 3)
	if err != nil || len(rest) != 2 {
		t.Fatalf("page 2 len = %d, %v; want 2", len(rest), err)
	}
}
