package domain

import "time"

// WithdrawalStatus is the review state of a payout request.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

// WithdrawalStatuses lists every status in lifecycle order.
var WithdrawalStatuses = []WithdrawalStatus{
	WithdrawalPending, WithdrawalApproved, WithdrawalRejected,
	WithdrawalProcessing, WithdrawalCompleted, WithdrawalFailed,
}

// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	for _, v := range WithdrawalStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// withdrawalFlow maps each status to the states it may move to. Review always
// precedes processing.
var withdrawalFlow = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved:   {WithdrawalProcessing, WithdrawalCompleted, WithdrawalFailed},
	WithdrawalProcessing: {WithdrawalCompleted, WithdrawalFailed},
}

// WithdrawalSources returns the states from which to is reachable.
func WithdrawalSources(to WithdrawalStatus) []WithdrawalStatus {
	var out []WithdrawalStatus
	for from, next := range withdrawalFlow {
		for _, n := range next {
			if n == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// CanMoveWithdrawal reports whether from -> to is allowed.
func CanMoveWithdrawal(from, to WithdrawalStatus) bool {
	for _, n := range withdrawalFlow[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Refunds reports whether reaching s returns the held amount to the wallet.
func (s WithdrawalStatus) Refunds() bool {
	return s == WithdrawalRejected || s == WithdrawalFailed
}

// Withdrawal is a user's request to move wallet funds to a PIX key. The amount
// is held (debited) when the request is created.
type Withdrawal struct {
	ID          string           `json:"id"                     gorm:"type:char(36);primaryKey"`
	UserID      string           `json:"user_id"                gorm:"type:varchar(64);not null;index"`
	AmountCents int64            `json:"amount_cents"           gorm:"not null;check:amount_cents > 0"`
	PixKey      string           `json:"pix_key"                gorm:"type:varchar(140);not null"`
	PixKeyType  string           `json:"pix_key_type"           gorm:"type:varchar(16);not null"`
	Status      WithdrawalStatus `json:"status"                 gorm:"type:varchar(16);not null;index"`
	RequestedAt time.Time        `json:"requested_at"           gorm:"index"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy  *string          `json:"reviewed_by,omitempty"  gorm:"type:varchar(64)"`
	ReviewNotes *string          `json:"review_notes,omitempty" gorm:"type:text"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Withdrawal.
func (Withdrawal) TableName() string { return "withdrawals" }
