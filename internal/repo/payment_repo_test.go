package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
)

func newPayment(userID, ref string, cents int64, created time.Time) *domain.Payment {
	return &domain.Payment{
		ID:            uuid.NewString(),
		ReferenceCode: ref,
		IdempotentID:  "idem-" + ref,
		UserID:        userID,
		AmountCents:   cents,
		Status:        domain.PaymentPending,
		CreatedAt:     created,
		ExpiresAt:     created.Add(domain.PaymentTTL),
		UpdatedAt:     created,
	}
}

func mustCreatePayment(t *testing.T, db *gorm.DB, p *domain.Payment) *domain.Payment {
	t.Helper()
	if err := CreatePayment(context.Background(), db, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	return p
}

func TestCreatePayment_DuplicateReference(t *testing.T) {
	db := newRepoDB(t)
	now := time.Now().UTC()
	mustCreatePayment(t, db, newPayment("u1", "ref-1", 1000, now))

	dup := newPayment("u2", "ref-1", 500, now)
	dup.IdempotentID = "other"
	if err := CreatePayment(context.Background(), db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestResolvePayment_PrecedenceAndScope(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	p := mustCreatePayment(t, db, newPayment("u1", "ref-A", 1000, time.Now().UTC()))

	for _, ident := range []string{p.ID, p.ReferenceCode, p.IdempotentID} {
		got, err := ResolvePayment(ctx, db, "u1", ident)
		if err != nil {
			t.Fatalf("ResolvePayment(%q): %v", ident, err)
		}
		if got.ID != p.ID {
			t.Fatalf("ResolvePayment(%q) = %s; want %s", ident, got.ID, p.ID)
		}
	}

	if _, err := ResolvePayment(ctx, db, "u2", p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user's lookup should be ErrNotFound, got %v", err)
	}
	if _, err := ResolvePayment(ctx, db, "u1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown ident should be ErrNotFound, got %v", err)
	}
}

func TestResolvePayment_IDWinsOverReference(t *testing.T) {
	db := newRepoDB(t)
	now := time.Now().UTC()
	a := mustCreatePayment(t, db, newPayment("u1", "ref-a", 100, now))
	// b's reference code collides with a's internal id.
	b := newPayment("u1", a.ID, 200, now)
	mustCreatePayment(t, db, b)

	got, err := ResolvePayment(context.Background(), db, "u1", a.ID)
	if err != nil {
		t.Fatalf("ResolvePayment: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("id match must take precedence; got %s", got.ID)
	}
}

func TestTransitionPayment_OnlyFromActive(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	p := mustCreatePayment(t, db, newPayment("u1", "ref-1", 1000, now))

	ok, err := TransitionPayment(ctx, db, p.ID, domain.PaymentAwaitingPayment, now)
	if err != nil || !ok {
		t.Fatalf("pending->awaiting: ok=%v err=%v", ok, err)
	}
	ok, err = TransitionPayment(ctx, db, p.ID, domain.PaymentPaid, now)
	if err != nil || !ok {
		t.Fatalf("awaiting->paid: ok=%v err=%v", ok, err)
	}
	// Second paid, then any other terminal, must not match.
	for _, to := range []domain.PaymentStatus{domain.PaymentPaid, domain.PaymentCancelled, domain.PaymentExpired, domain.PaymentAwaitingPayment} {
		ok, err = TransitionPayment(ctx, db, p.ID, to, now)
		if err != nil || ok {
			t.Fatalf("paid->%s must not apply: ok=%v err=%v", to, ok, err)
		}
	}

	got, _ := GetPayment(ctx, db, p.ID)
	if got.Status != domain.PaymentPaid || got.PaidAt == nil || got.CancelledAt != nil || got.ExpiredAt != nil {
		t.Fatalf("unexpected final row: %+v", got)
	}
}

func TestTransitionPayment_ConcurrentPaidOnlyOnce(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	p := mustCreatePayment(t, db, newPayment("u1", "ref-c", 1000, now))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := TransitionPayment(ctx, db, p.ID, domain.PaymentPaid, now)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", wins)
	}
}

func TestExpireStalePayments_Boundary(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := mustCreatePayment(t, db, newPayment("u1", "ref-e", 1000, created))
	paid := mustCreatePayment(t, db, newPayment("u1", "ref-paid", 1000, created))
	if ok, _ := TransitionPayment(ctx, db, paid.ID, domain.PaymentPaid, created); !ok {
		t.Fatalf("setup paid transition failed")
	}

	early := created.Add(29*time.Minute + 59*time.Second)
	n, err := ExpireStalePayments(ctx, db, early.Add(-domain.PaymentTTL), early)
	if err != nil || n != 0 {
		t.Fatalf("at T+29m59s expected 0 expired, got n=%d err=%v", n, err)
	}

	at := created.Add(domain.PaymentTTL)
	if c, _ := CountStalePayments(ctx, db, at.Add(-domain.PaymentTTL)); c != 1 {
		t.Fatalf("CountStalePayments = %d; want 1", c)
	}
	n, err = ExpireStalePayments(ctx, db, at.Add(-domain.PaymentTTL), at)
	if err != nil || n != 1 {
		t.Fatalf("at T+30m expected 1 expired, got n=%d err=%v", n, err)
	}
	// Idempotent: a second sweep finds nothing.
	if n, _ = ExpireStalePayments(ctx, db, at.Add(-domain.PaymentTTL), at); n != 0 {
		t.Fatalf("second sweep expired %d rows", n)
	}

	got, _ := GetPayment(ctx, db, p.ID)
	if got.Status != domain.PaymentExpired || got.ExpiredAt == nil {
		t.Fatalf("expected expired row, got %+v", got)
	}
	still, _ := GetPayment(ctx, db, paid.ID)
	if still.Status != domain.PaymentPaid {
		t.Fatalf("paid payment must not expire, got %s", still.Status)
	}
}

func TestExpireStalePaymentsFor_ScopedToUser(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mine := mustCreatePayment(t, db, newPayment("u1", "ref-mine", 1000, created))
	theirs := mustCreatePayment(t, db, newPayment("u2", "ref-theirs", 1000, created))

	at := created.Add(domain.PaymentTTL)
	n, err := ExpireStalePaymentsFor(ctx, db, "u1", at.Add(-domain.PaymentTTL), at)
	if err != nil || n != 1 {
		t.Fatalf("ExpireStalePaymentsFor = %d, %v; want 1", n, err)
	}
	if got, _ := GetPayment(ctx, db, mine.ID); got.Status != domain.PaymentExpired {
		t.Fatalf("own stale payment = %s", got.Status)
	}
	if got, _ := GetPayment(ctx, db, theirs.ID); got.Status != domain.PaymentPending {
		t.Fatalf("other user's payment = %s", got.Status)
	}
}

func TestLatestActivePayment_And_CancelAll(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := LatestActivePayment(ctx, db, "u1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no payments, got %v", err)
	}

	mustCreatePayment(t, db, newPayment("u1", "old", 100, now.Add(-time.Hour)))
	recent := mustCreatePayment(t, db, newPayment("u1", "recent", 200, now.Add(-time.Minute)))
	mustCreatePayment(t, db, newPayment("u2", "other", 300, now))

	got, err := LatestActivePayment(ctx, db, "u1", now)
	if err != nil || got.ID != recent.ID {
		t.Fatalf("LatestActivePayment = %+v, %v", got, err)
	}

	n, err := CancelActivePayments(ctx, db, "u1", now)
	if err != nil || n != 2 {
		t.Fatalf("CancelActivePayments n=%d err=%v", n, err)
	}
	if _, err := LatestActivePayment(ctx, db, "u1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no active payment expected after cancel-all, got %v", err)
	}
	if total, _ := CountPayments(ctx, db, "u2"); total != 1 {
		t.Fatalf("other user's payments must be untouched")
	}
	page, err := ListPaymentsPage(ctx, db, "u1", 0, 1)
	if err != nil || len(page) != 1 || page[0].ID != recent.ID {
		t.Fatalf("ListPaymentsPage = %+v, %v", page, err)
	}
}

func TestPaymentStats(t *testing.T) {
	db := newRepoDB(t)
	now := time.Now().UTC()
	mustCreatePayment(t, db, newPayment("u1", "a", 100, now))
	mustCreatePayment(t, db, newPayment("u1", "b", 250, now))
	stats, err := PaymentStats(context.Background(), db)
	if err != nil {
		t.Fatalf("PaymentStats: %v", err)
	}
	if len(stats) != 1 || stats[0].Status != "pending" || stats[0].Count != 2 || stats[0].TotalCents != 350 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
