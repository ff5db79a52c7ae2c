package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/pix-panel/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidEntry is returned for non-positive amounts or unknown types.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser creates u or refreshes its name, email and role. The balance of
// an existing user is never touched here.
func UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.User
		err := tx.Where("id = ?", u.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(u).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"name": u.Name, "email": u.Email, "role": u.Role,
		}).Error
	})
}

// CreateUserIfMissing inserts a zero-balance user with id and role unless one
// already exists. An existing row is left untouched.
func CreateUserIfMissing(ctx context.Context, db *gorm.DB, id, role string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&domain.User{ID: id, Role: role}).Error
}

// ApplyLedgerEntry is the only way a balance changes. It adjusts the user's
// balance and appends the matching wallet transaction as one atomic unit.
// A debit only succeeds when balance >= amount at the moment of the update.
//
// When db is already a transaction the work joins it through a savepoint,
// so callers can combine a ledger entry with their own writes.
func ApplyLedgerEntry(ctx context.Context, db *gorm.DB, e domain.LedgerEntry, at time.Time) (*domain.WalletTransaction, error) {
	if e.AmountCents <= 0 || (e.Type != domain.EntryCredit && e.Type != domain.EntryDebit) {
		return nil, ErrInvalidEntry
	}

	var out *domain.WalletTransaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.User{}).Where("id = ?", e.UserID)
		var res *gorm.DB
		if e.Type == domain.EntryCredit {
			res = q.Updates(map[string]any{
				"balance_cents": gorm.Expr("balance_cents + ?", e.AmountCents),
				"updated_at":    at,
			})
		} else {
			res = q.Where("balance_cents >= ?", e.AmountCents).Updates(map[string]any{
				"balance_cents": gorm.Expr("balance_cents - ?", e.AmountCents),
				"updated_at":    at,
			})
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := GetUser(ctx, tx, e.UserID); err != nil {
				return err
			}
			return ErrInsufficientFunds
		}

		var balance int64
		if err := tx.Model(&domain.User{}).Where("id = ?", e.UserID).
			Select("balance_cents").Scan(&balance).Error; err != nil {
			return err
		}

		wt := &domain.WalletTransaction{
			ID:                uuid.NewString(),
			UserID:            e.UserID,
			Type:              e.Type,
			AmountCents:       e.AmountCents,
			BalanceAfterCents: balance,
			Description:       e.Description,
			ReferenceType:     e.ReferenceType,
			ReferenceID:       e.ReferenceID,
			CreatedAt:         at,
		}
		if err := tx.Create(wt).Error; err != nil {
			return err
		}
		out = wt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListWalletTransactionsPage returns a page of userID's ledger, newest first.
func ListWalletTransactionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountWalletTransactions returns the ledger length for userID.
func CountWalletTransactions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.WalletTransaction{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// CountLedgerEntriesFor returns how many entries reference the given origin.
func CountLedgerEntriesFor(ctx context.Context, db *gorm.DB, refType, refID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.WalletTransaction{}).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Count(&n).Error
	return n, err
}
