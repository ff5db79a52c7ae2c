package domain

import "time"

// Ledger entry directions.
const (
	EntryCredit = "credit"
	EntryDebit  = "debit"
)

// Ledger entry origins.
const (
	RefPayment    = "payment"
	RefPhoto      = "photo"
	RefWithdrawal = "withdrawal"
	RefAdmin      = "admin"
)

// WalletTransaction is one append-only ledger line. BalanceAfterCents is the
// user's balance right after the entry was applied.
type WalletTransaction struct {
	ID                string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID            string    `json:"user_id"             gorm:"type:varchar(64);not null;index:idx_wallet_user_created,priority:1"`
	Type              string    `json:"type"                gorm:"type:varchar(8);not null;check:type IN ('credit','debit')"`
	AmountCents       int64     `json:"amount_cents"        gorm:"not null;check:amount_cents > 0"`
	BalanceAfterCents int64     `json:"balance_after_cents" gorm:"not null"`
	Description       string    `json:"description"         gorm:"type:varchar(255)"`
	ReferenceType     string    `json:"reference_type"      gorm:"type:varchar(16);index:idx_wallet_reference,priority:1"`
	ReferenceID       string    `json:"reference_id"        gorm:"type:varchar(64);index:idx_wallet_reference,priority:2"`
	CreatedAt         time.Time `json:"created_at"          gorm:"index:idx_wallet_user_created,priority:2"`
}

// TableName returns the database table name for WalletTransaction.
func (WalletTransaction) TableName() string { return "wallet_transactions" }

// LedgerEntry is the input to a single balance mutation.
type LedgerEntry struct {
	UserID        string
	Type          string
	AmountCents   int64
	Description   string
	ReferenceType string
	ReferenceID   string
}
