package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// resolveColumns is the lookup precedence used by ResolvePayment.
var resolveColumns = []string{"id", "reference_code", "idempotent_id"}

func statusStrings(ss []domain.PaymentStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// transitionSources lists the states from which to may be reached.
func transitionSources(to domain.PaymentStatus) []string {
	if to == domain.PaymentAwaitingPayment {
		return []string{string(domain.PaymentPending)}
	}
	return statusStrings(domain.ActivePaymentStatuses)
}

// terminalColumn names the timestamp written by a transition into to.
func terminalColumn(to domain.PaymentStatus) string {
	switch to {
	case domain.PaymentPaid:
		return "paid_at"
	case domain.PaymentExpired:
		return "expired_at"
	case domain.PaymentCancelled:
		return "cancelled_at"
	case domain.PaymentFailed:
		return "failed_at"
	}
	return ""
}

// CreatePayment inserts p. ID and timestamps must already be set.
func CreatePayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPayment fetches a payment by internal id regardless of owner.
func GetPayment(ctx context.Context, db *gorm.DB, id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentByReference fetches a payment by provider reference code
// regardless of owner. Used by webhook ingestion, which has no user context.
func GetPaymentByReference(ctx context.Context, db *gorm.DB, ref string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("reference_code = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolvePayment finds one of userID's payments by an identifier that may be
// the internal id, the reference code or the idempotent id, tried in that
// order. A payment owned by another user is reported as ErrNotFound.
func ResolvePayment(ctx context.Context, db *gorm.DB, userID, ident string) (*domain.Payment, error) {
	for _, col := range resolveColumns {
		var p domain.Payment
		err := db.WithContext(ctx).
			Where(col+" = ? AND user_id = ?", ident, userID).
			First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// LatestActivePayment returns userID's newest active payment that has not
// reached its expiry at now, or ErrNotFound.
func LatestActivePayment(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND created_at > ?",
			userID, statusStrings(domain.ActivePaymentStatuses), now.Add(-domain.PaymentTTL)).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPaymentsPage returns a page of userID's payments, newest first.
func ListPaymentsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountPayments returns how many payments userID owns.
func CountPayments(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Payment{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// TransitionPayment moves payment id into status to, stamping the matching
// terminal timestamp with at. The update only matches rows currently in a
// state that may legally reach to. It reports whether this call performed the
// transition; false means another actor got there first or the move is not
// permitted from the current state.
func TransitionPayment(ctx context.Context, db *gorm.DB, id string, to domain.PaymentStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": string(to), "updated_at": at}
	if col := terminalColumn(to); col != "" {
		updates[col] = at
	}
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status IN ?", id, transitionSources(to)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelActivePayments cancels every active payment owned by userID and
// returns how many rows changed.
func CancelActivePayments(ctx context.Context, db *gorm.DB, userID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("user_id = ? AND status IN ?", userID, statusStrings(domain.ActivePaymentStatuses)).
		Updates(map[string]any{"status": string(domain.PaymentCancelled), "cancelled_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

// ExpireStalePayments expires every active payment created at or before
// cutoff and returns how many rows changed. Rows concurrently paid or
// cancelled no longer match the status predicate and are left alone.
func ExpireStalePayments(ctx context.Context, db *gorm.DB, cutoff, at time.Time) (int64, error) {
	return expireStale(db.WithContext(ctx).Model(&domain.Payment{}), cutoff, at)
}

// ExpireStalePaymentsFor is ExpireStalePayments limited to userID's rows.
func ExpireStalePaymentsFor(ctx context.Context, db *gorm.DB, userID string, cutoff, at time.Time) (int64, error) {
	return expireStale(db.WithContext(ctx).Model(&domain.Payment{}).Where("user_id = ?", userID), cutoff, at)
}

func expireStale(q *gorm.DB, cutoff, at time.Time) (int64, error) {
	res := q.
		Where("status IN ? AND created_at <= ?", statusStrings(domain.ActivePaymentStatuses), cutoff).
		Updates(map[string]any{"status": string(domain.PaymentExpired), "expired_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

// CountStalePayments returns how many active payments ExpireStalePayments
// would expire for the same cutoff.
func CountStalePayments(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("status IN ? AND created_at <= ?", statusStrings(domain.ActivePaymentStatuses), cutoff).
		Count(&n).Error
	return n, err
}
