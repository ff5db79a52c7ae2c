package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/pix-panel/internal/domain"
)

func TestPhotoRepo_Lifecycle(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ph := &domain.Photo{ID: uuid.NewString(), Title: "beach", ImageURL: "https://cdn/b.jpg", PriceCents: 1500, Active: true, CreatedAt: now}
	if err := CreatePhoto(ctx, db, ph); err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}

	if _, err := CreatePhotoPurchase(ctx, db, ph.ID, "u1", ph.PriceCents, now); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if _, err := CreatePhotoPurchase(ctx, db, ph.ID, "u1", ph.PriceCents, now); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on second purchase, got %v", err)
	}
	if err := RecordPhotoSale(ctx, db, ph.ID, ph.PriceCents); err != nil {
		t.Fatalf("RecordPhotoSale: %v", err)
	}

	got, _ := GetPhoto(ctx, db, ph.ID)
	if got.Purchases != 1 || got.RevenueCents != 1500 {
		t.Fatalf("counters = %d / %d", got.Purchases, got.RevenueCents)
	}

	ids, _ := PurchasedPhotoIDs(ctx, db, "u1")
	if len(ids) != 1 || ids[0] != ph.ID {
		t.Fatalf("PurchasedPhotoIDs = %v", ids)
	}
	owned, err := ListPurchasedPhotos(ctx, db, "u1")
	if err != nil || len(owned) != 1 {
		t.Fatalf("ListPurchasedPhotos = %v, %v", owned, err)
	}
	if n, _ := CountPhotoPurchases(ctx, db, ph.ID, "u1"); n != 1 {
		t.Fatalf("CountPhotoPurchases = %d", n)
	}

	if err := SetPhotoActive(ctx, db, ph.ID, false); err != nil {
		t.Fatalf("SetPhotoActive: %v", err)
	}
	if list, _ := ListActivePhotos(ctx, db); len(list) != 0 {
		t.Fatalf("inactive photo listed")
	}
	if err := SetPhotoActive(ctx, db, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
