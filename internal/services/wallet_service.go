package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/utils"
)

// WalletService reads balances and ledgers and performs admin adjustments.
// Reads that fail at the database surface ErrUnavailable; no fallback value
// is ever returned in place of real data.
type WalletService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
}

func (s *WalletService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Balance returns the user's balance in centavos.
func (s *WalletService) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return u.BalanceCents, nil
}

// Ledger returns the balance and a page of ledger entries, newest first.
func (s *WalletService) Ledger(ctx context.Context, userID string, page, pageSize int) (int64, []domain.WalletTransaction, int64, error) {
	page, pageSize = utils.Normalize(page, pageSize)
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return 0, nil, 0, err
	}
	total, err := repo.CountWalletTransactions(ctx, s.DB, userID)
	if err != nil {
		return 0, nil, 0, unavailable(err)
	}
	if total == 0 {
		return balance, []domain.WalletTransaction{}, 0, nil
	}
	items, err := repo.ListWalletTransactionsPage(ctx, s.DB, userID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return 0, nil, 0, unavailable(err)
	}
	return balance, items, total, nil
}

// Adjust applies an admin credit or debit to userID's wallet.
func (s *WalletService) Adjust(ctx context.Context, adminID, userID, entryType string, amountCents int64, description string) (*domain.WalletTransaction, error) {
	entryType = strings.ToLower(strings.TrimSpace(entryType))
	if amountCents <= 0 || (entryType != domain.EntryCredit && entryType != domain.EntryDebit) {
		return nil, ErrInvalidEntry
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Ajuste administrativo " + FormatBRL(amountCents)
	}

	now := s.now()
	wt, err := repo.ApplyLedgerEntry(ctx, s.DB, domain.LedgerEntry{
		UserID:        userID,
		Type:          entryType,
		AmountCents:   amountCents,
		Description:   description,
		ReferenceType: domain.RefAdmin,
		ReferenceID:   adminID,
	}, now)
	if err != nil {
		return nil, ledgerErr(err)
	}
	ledgerEntries.WithLabelValues(wt.Type).Inc()
	log.Info().Str("user_id", userID).Str("admin_id", adminID).Str("type", entryType).
		Int64("amount_cents", amountCents).Msg("wallet adjusted")
	publish(ctx, s.Events, events.Event{
		Type: events.WalletAdjusted, Key: userID, UserID: userID, Status: entryType,
		AmountCents: amountCents, OccurredAt: now,
	})
	return wt, nil
}

// EnsureUser provisions or refreshes a user record mirrored from the token
// issuer. An existing balance is preserved.
func (s *WalletService) EnsureUser(ctx context.Context, id, name, email, role string) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUserNotFound
	}
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	u := &domain.User{ID: id, Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Role: role}
	if err := repo.UpsertUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return repo.GetUser(ctx, s.DB, id)
}

// Provision makes sure an authenticated identity has a wallet row. Existing
// users, balance and role included, are not modified.
func (s *WalletService) Provision(ctx context.Context, id, role string) error {
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	if err := repo.CreateUserIfMissing(ctx, s.DB, id, role); err != nil {
		return unavailable(err)
	}
	return nil
}

// ledgerErr maps repository ledger failures to service errors.
func ledgerErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, repo.ErrInsufficientFunds):
		return ErrInsufficientBalance
	case errors.Is(err, repo.ErrInvalidEntry):
		return ErrInvalidEntry
	}
	return err
}
