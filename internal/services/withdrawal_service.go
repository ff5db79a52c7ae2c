// Package services – WithdrawalService
//
// WithdrawalService runs the payout request and review flow:
//
//	pending -> approved | rejected
//	approved -> processing | completed | failed
//	processing -> completed | failed
//
// The requested amount is held at submission with a ledger debit. A rejected
// or failed withdrawal gives the hold back with a matching credit in the same
// transaction as the status change. Every move is a conditional update on the
// allowed source states, so two reviewers cannot both act on one request.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScopeWithdrawals is the idempotency scope of withdrawal requests.
const ScopeWithdrawals = "withdrawals"

// WithdrawalService implements withdrawal use-cases.
type WithdrawalService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time

	// IdempotencyTTL bounds how long an Idempotency-Key replays the original.
	IdempotencyTTL time.Duration
}

// WithdrawalRequest is a user's payout request.
type WithdrawalRequest struct {
	AmountCents    int64
	PixKey         string
	PixKeyType     string
	IdempotencyKey string
}

// WithdrawalPage is an admin listing with per-status aggregates.
type WithdrawalPage struct {
	Items []domain.Withdrawal
	Total int64
	Stats []repo.StatusTotal
}

func (s *WithdrawalService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *WithdrawalService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

// Request submits a withdrawal and holds its amount. With an idempotency key
// a retry returns the original withdrawal; the boolean reports a replay.
func (s *WithdrawalService) Request(ctx context.Context, userID string, req WithdrawalRequest) (*domain.Withdrawal, bool, error) {
	tr := otel.Tracer("services/WithdrawalService")
	ctx, span := tr.Start(ctx, "Request",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("amount.cents", req.AmountCents),
		),
	)
	defer span.End()

	now := s.now()
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if w, err := s.replay(ctx, userID, key, now); err == nil {
			return w, true, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, false, unavailable(err)
		}
	}

	keyType := strings.ToLower(strings.TrimSpace(req.PixKeyType))
	pixKey := domain.NormalizePixKey(keyType, req.PixKey)
	if req.AmountCents <= 0 || pixKey == "" {
		return nil, false, ErrInvalidWithdrawal
	}

	w := &domain.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountCents: req.AmountCents,
		PixKey:      pixKey,
		PixKeyType:  keyType,
		Status:      domain.WithdrawalPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateWithdrawal(ctx, tx, w); err != nil {
			return err
		}
		if _, err := repo.ApplyLedgerEntry(ctx, tx, domain.LedgerEntry{
			UserID:        userID,
			Type:          domain.EntryDebit,
			AmountCents:   w.AmountCents,
			Description:   "Saque PIX " + FormatBRL(w.AmountCents),
			ReferenceType: domain.RefWithdrawal,
			ReferenceID:   w.ID,
		}, now); err != nil {
			return ledgerErr(err)
		}
		if key != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, userID, ScopeWithdrawals, key, w.ID, http.StatusCreated, s.ttl()); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key won.
		if orig, rerr := s.replay(ctx, userID, key, now); rerr == nil {
			return orig, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	ledgerEntries.WithLabelValues(domain.EntryDebit).Inc()
	log.Info().Str("user_id", userID).Str("withdrawal_id", w.ID).Int64("amount_cents", w.AmountCents).Msg("withdrawal requested")
	publish(ctx, s.Events, withdrawalEvent(events.WithdrawalRequested, w, now))
	return w, false, nil
}

func (s *WithdrawalService) replay(ctx context.Context, userID, key string, now time.Time) (*domain.Withdrawal, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, ScopeWithdrawals, key, now)
	if err != nil {
		return nil, err
	}
	return repo.GetWithdrawal(ctx, s.DB, rec.ResourceID)
}

// Get returns one of userID's withdrawals.
func (s *WithdrawalService) Get(ctx context.Context, userID, id string) (*domain.Withdrawal, error) {
	w, err := repo.GetWithdrawal(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && w.UserID != userID) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return w, nil
}

// ListMine returns a page of userID's withdrawals, newest first.
func (s *WithdrawalService) ListMine(ctx context.Context, userID string, page, pageSize int) ([]domain.Withdrawal, int64, error) {
	return s.list(ctx, repo.WithdrawalFilter{UserID: userID}, page, pageSize)
}

// ListAll returns the admin queue, optionally filtered by status, together
// with count and amount per status across all withdrawals.
func (s *WithdrawalService) ListAll(ctx context.Context, status string, page, pageSize int) (*WithdrawalPage, error) {
	f := repo.WithdrawalFilter{}
	if status != "" {
		st := domain.WithdrawalStatus(strings.ToLower(status))
		if !st.Valid() {
			return nil, ErrInvalidWithdrawal
		}
		f.Status = st
	}
	items, total, err := s.list(ctx, f, page, pageSize)
	if err != nil {
		return nil, err
	}
	stats, err := repo.WithdrawalStats(ctx, s.DB)
	if err != nil {
		return nil, unavailable(err)
	}
	return &WithdrawalPage{Items: items, Total: total, Stats: stats}, nil
}

func (s *WithdrawalService) list(ctx context.Context, f repo.WithdrawalFilter, page, pageSize int) ([]domain.Withdrawal, int64, error) {
	page, pageSize = utils.Normalize(page, pageSize)
	total, err := repo.CountWithdrawals(ctx, s.DB, f)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	if total == 0 {
		return []domain.Withdrawal{}, 0, nil
	}
	items, err := repo.ListWithdrawalsPage(ctx, s.DB, f, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return items, total, nil
}

// Review approves or rejects a pending withdrawal. decision is "approve" or
// "reject" (the target status names are accepted too). Rejection refunds the
// held amount.
func (s *WithdrawalService) Review(ctx context.Context, adminID, id, decision, notes string) (*domain.Withdrawal, error) {
	var to domain.WithdrawalStatus
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "approve", string(domain.WithdrawalApproved):
		to = domain.WithdrawalApproved
	case "reject", string(domain.WithdrawalRejected):
		to = domain.WithdrawalRejected
	default:
		return nil, ErrInvalidDecision
	}
	now := s.now()
	extra := map[string]any{"reviewed_at": now, "reviewed_by": adminID}
	if n := strings.TrimSpace(notes); n != "" {
		extra["review_notes"] = n
	}
	return s.move(ctx, id, to, now, extra)
}

// Process records payout progress on an approved withdrawal. status is
// "processing", "completed" or "failed"; failure refunds the held amount.
func (s *WithdrawalService) Process(ctx context.Context, adminID, id, status, notes string) (*domain.Withdrawal, error) {
	to := domain.WithdrawalStatus(strings.ToLower(strings.TrimSpace(status)))
	switch to {
	case domain.WithdrawalProcessing, domain.WithdrawalCompleted, domain.WithdrawalFailed:
	default:
		return nil, ErrInvalidDecision
	}
	now := s.now()
	extra := map[string]any{}
	if to != domain.WithdrawalProcessing {
		extra["processed_at"] = now
	}
	if n := strings.TrimSpace(notes); n != "" {
		extra["review_notes"] = n
	}
	log.Info().Str("admin_id", adminID).Str("withdrawal_id", id).Str("to", string(to)).Msg("withdrawal processing update")
	return s.move(ctx, id, to, now, extra)
}

func (s *WithdrawalService) move(ctx context.Context, id string, to domain.WithdrawalStatus, now time.Time, extra map[string]any) (*domain.Withdrawal, error) {
	tr := otel.Tracer("services/WithdrawalService")
	ctx, span := tr.Start(ctx, "Move",
		trace.WithAttributes(
			attribute.String("withdrawal.id", id),
			attribute.String("withdrawal.to", string(to)),
		),
	)
	defer span.End()

	var out *domain.Withdrawal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := repo.GetWithdrawal(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrWithdrawalNotFound
		}
		if err != nil {
			return err
		}
		if !domain.CanMoveWithdrawal(w.Status, to) {
			return ErrWithdrawalState
		}
		ok, err := repo.MoveWithdrawal(ctx, tx, id, to, now, extra)
		if err != nil {
			return err
		}
		if !ok {
			return ErrWithdrawalState
		}
		if to.Refunds() {
			if _, err := repo.ApplyLedgerEntry(ctx, tx, domain.LedgerEntry{
				UserID:        w.UserID,
				Type:          domain.EntryCredit,
				AmountCents:   w.AmountCents,
				Description:   "Estorno de saque " + FormatBRL(w.AmountCents),
				ReferenceType: domain.RefWithdrawal,
				ReferenceID:   w.ID,
			}, now); err != nil {
				return ledgerErr(err)
			}
		}
		out, err = repo.GetWithdrawal(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if to.Refunds() {
		ledgerEntries.WithLabelValues(domain.EntryCredit).Inc()
	}
	log.Info().Str("withdrawal_id", id).Str("status", string(to)).Msg("withdrawal moved")
	publish(ctx, s.Events, withdrawalEvent(events.WithdrawalStatus, out, now))
	return out, nil
}

func withdrawalEvent(typ string, w *domain.Withdrawal, at time.Time) events.Event {
	return events.Event{
		Type:        typ,
		Key:         w.ID,
		UserID:      w.UserID,
		Reference:   w.ID,
		Status:      string(w.Status),
		AmountCents: w.AmountCents,
		OccurredAt:  at,
	}
}
