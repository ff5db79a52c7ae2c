package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/pix-panel/internal/domain"
)

func newWithdrawal(userID string, cents int64, at time.Time) *domain.Withdrawal {
	return &domain.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountCents: cents,
		PixKey:      "52998224725",
		PixKeyType:  "cpf",
		Status:      domain.WithdrawalPending,
		RequestedAt: at,
		UpdatedAt:   at,
	}
}

func TestWithdrawals_CreateGetListCount(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	older := newWithdrawal("u1", 1000, base)
	newer := newWithdrawal("u1", 2000, base.Add(time.Hour))
	other := newWithdrawal("u2", 3000, base.Add(2*time.Hour))
	other.Status = domain.WithdrawalApproved
	for _, w := range []*domain.Withdrawal{older, newer, other} {
		if err := CreateWithdrawal(ctx, db, w); err != nil {
			t.Fatalf("CreateWithdrawal: %v", err)
		}
	}

	got, err := GetWithdrawal(ctx, db, newer.ID)
	if err != nil || got.AmountCents != 2000 {
		t.Fatalf("GetWithdrawal = %+v, %v", got, err)
	}
	if _, err := GetWithdrawal(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	page, err := ListWithdrawalsPage(ctx, db, WithdrawalFilter{UserID: "u1"}, 0, 10)
	if err != nil {
		t.Fatalf("ListWithdrawalsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != newer.ID || page[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", page)
	}

	n, err := CountWithdrawals(ctx, db, WithdrawalFilter{Status: domain.WithdrawalPending})
	if err != nil || n != 2 {
		t.Fatalf("CountWithdrawals(pending) = %d, %v", n, err)
	}
	n, err = CountWithdrawals(ctx, db, WithdrawalFilter{})
	if err != nil || n != 3 {
		t.Fatalf("CountWithdrawals(all) = %d, %v", n, err)
	}

	second, err := ListWithdrawalsPage(ctx, db, WithdrawalFilter{}, 1, 1)
	if err != nil || len(second) != 1 || second[0].ID != newer.ID {
		t.Fatalf("offset page = %+v, %v", second, err)
	}
}

func TestMoveWithdrawal_GuardsSourceState(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	w := newWithdrawal("u1", 1000, now)
	if err := CreateWithdrawal(ctx, db, w); err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}

	// pending cannot jump straight to completed
	moved, err := MoveWithdrawal(ctx, db, w.ID, domain.WithdrawalCompleted, now, nil)
	if err != nil || moved {
		t.Fatalf("pending->completed moved=%v err=%v", moved, err)
	}

	// nothing reaches pending
	moved, err = MoveWithdrawal(ctx, db, w.ID, domain.WithdrawalPending, now, nil)
	if err != nil || moved {
		t.Fatalf("->pending moved=%v err=%v", moved, err)
	}

	reviewer := "admin"
	moved, err = MoveWithdrawal(ctx, db, w.ID, domain.WithdrawalApproved, now, map[string]any{
		"reviewed_by": reviewer,
		"reviewed_at": now,
	})
	if err != nil || !moved {
		t.Fatalf("pending->approved moved=%v err=%v", moved, err)
	}

	// a second approval loses the race
	moved, err = MoveWithdrawal(ctx, db, w.ID, domain.WithdrawalApproved, now, nil)
	if err != nil || moved {
		t.Fatalf("repeat approve moved=%v err=%v", moved, err)
	}

	got, err := GetWithdrawal(ctx, db, w.ID)
	if err != nil {
		t.Fatalf("GetWithdrawal: %v", err)
	}
	if got.Status != domain.WithdrawalApproved || got.ReviewedBy == nil || *got.ReviewedBy != reviewer {
		t.Fatalf("unexpected row: %+v", got)
	}

	moved, err = MoveWithdrawal(ctx, db, w.ID, domain.WithdrawalCompleted, now, map[string]any{"processed_at": now})
	if err != nil || !moved {
		t.Fatalf("approved->completed moved=%v err=%v", moved, err)
	}
}
