package domain

import "time"

// PaymentStatus is the lifecycle state of a PIX charge.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentPaid            PaymentStatus = "paid"
	PaymentExpired         PaymentStatus = "expired"
	PaymentCancelled       PaymentStatus = "cancelled"
	PaymentFailed          PaymentStatus = "failed"
)

// PaymentTTL is how long a charge stays payable after creation.
const PaymentTTL = 30 * time.Minute

// ActivePaymentStatuses are the only states a transition may start from.
var ActivePaymentStatuses = []PaymentStatus{PaymentPending, PaymentAwaitingPayment}

// IsActive reports whether the payment can still be paid, cancelled or expired.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentPending || s == PaymentAwaitingPayment
}

// IsTerminal reports whether no further transition is permitted.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentPaid, PaymentExpired, PaymentCancelled, PaymentFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool { return s.IsActive() || s.IsTerminal() }

// CanTransition reports whether the state machine allows from -> to.
// pending may advance to awaiting_payment; any active state may reach a
// terminal state; nothing leaves a terminal state.
func CanTransition(from, to PaymentStatus) bool {
	if !from.IsActive() {
		return false
	}
	if to == PaymentAwaitingPayment {
		return from == PaymentPending
	}
	return to.IsTerminal()
}

// Payment is a PIX charge issued through the provider for a wallet top-up.
//
// Fields:
//   - ID: UUID primary key.
//   - ReferenceCode: provider reference, globally unique.
//   - IdempotentID: client/provider idempotency token, globally unique.
//   - UserID: owner; every lookup is scoped by it.
//   - AmountCents: charge value, strictly positive.
//   - ExpiresAt: CreatedAt + PaymentTTL.
//   - PaidAt / ExpiredAt / CancelledAt / FailedAt: at most one is set, written
//     once by the conditional update that performs the transition.
type Payment struct {
	ID            string        `json:"id"               gorm:"type:char(36);primaryKey"`
	ReferenceCode string        `json:"reference_code"   gorm:"type:varchar(128);not null;uniqueIndex:ux_payments_reference"`
	IdempotentID  string        `json:"idempotent_id"    gorm:"type:varchar(128);not null;uniqueIndex:ux_payments_idempotent"`
	UserID        string        `json:"user_id"          gorm:"type:varchar(64);not null;index:idx_payments_user_status,priority:1"`
	AmountCents   int64         `json:"amount_cents"     gorm:"not null;check:amount_cents > 0"`
	Status        PaymentStatus `json:"status"           gorm:"type:varchar(24);not null;index:idx_payments_user_status,priority:2;index:idx_payments_status_created,priority:1"`
	PixCopiaECola string        `json:"pix_copia_e_cola" gorm:"type:text"`
	QRCodeImage   string        `json:"qr_code_image"    gorm:"type:text"`
	CreatedAt     time.Time     `json:"created_at"       gorm:"index:idx_payments_status_created,priority:2"`
	ExpiresAt     time.Time     `json:"expires_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	ExpiredAt     *time.Time    `json:"expired_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	FailedAt      *time.Time    `json:"failed_at,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// StaleAt reports whether the payment is old enough to be expired at now.
func (p Payment) StaleAt(now time.Time) bool {
	return p.Status.IsActive() && !p.CreatedAt.After(now.Add(-PaymentTTL))
}
