// Package services – PixService
//
// This file implements PixService, which owns the lifecycle of PIX charges:
// creation through the provider, lookup by any of the three identifiers,
// cancellation, lazy and bulk expiration, and status polling. Every status
// change goes through a conditional update whose predicate names the states
// it may start from, so concurrent actors (sweep, webhook, user) cannot undo
// each other's work.
//
// Observability: public methods open OpenTelemetry spans tagged with the
// user and payment identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/observability"
	"github.com/tbourn/pix-panel/internal/primepag"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChargeProvider is the subset of the PrimePag client PixService needs.
type ChargeProvider interface {
	CreateCharge(ctx context.Context, req primepag.ChargeRequest) (*primepag.Charge, error)
	GetCharge(ctx context.Context, referenceCode string) (*primepag.Charge, error)
}

// PixService coordinates payment persistence with the charge provider.
type PixService struct {
	DB       *gorm.DB
	Provider ChargeProvider
	Events   events.Publisher

	// Poll enables provider status polling from Status.
	Poll bool

	// Charge bounds in centavos; zero disables the bound.
	MinAmountCents int64
	MaxAmountCents int64

	// Now is the clock; defaults to time.Now in UTC.
	Now func() time.Time
}

func (s *PixService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create issues a charge of amountCents for userID.
//
// The idempotentID (usually the client's Idempotency-Key) makes retries safe:
// when one of the user's payments already carries it, that payment is
// returned unchanged. A user with an active, unexpired charge gets that charge
// back instead of a second one; the user's stale active charges are expired
// first so at most one active row remains. The boolean reports whether a new
// payment was created.
func (s *PixService) Create(ctx context.Context, userID string, amountCents int64, idempotentID string) (*domain.Payment, bool, error) {
	ctx, span := otel.Tracer("services/PixService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("amount.cents", amountCents),
		),
	)
	defer span.End()

	if amountCents <= 0 ||
		(s.MinAmountCents > 0 && amountCents < s.MinAmountCents) ||
		(s.MaxAmountCents > 0 && amountCents > s.MaxAmountCents) {
		return nil, false, ErrInvalidAmount
	}

	if idempotentID != "" {
		p, err := repo.ResolvePayment(ctx, s.DB, userID, idempotentID)
		if err == nil && p.IdempotentID == idempotentID {
			return p, false, nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, false, unavailable(err)
		}
	} else {
		idempotentID = uuid.NewString()
	}

	now := s.now()
	stale, err := repo.ExpireStalePaymentsFor(ctx, s.DB, userID, now.Add(-domain.PaymentTTL), now)
	if err != nil {
		return nil, false, unavailable(err)
	}
	if stale > 0 {
		paymentTransitions.WithLabelValues(string(domain.PaymentExpired)).Add(float64(stale))
	}
	if p, err := repo.LatestActivePayment(ctx, s.DB, userID, now); err == nil {
		return p, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, unavailable(err)
	}

	// The paid webhook credits this row.
	if err := repo.CreateUserIfMissing(ctx, s.DB, userID, domain.RoleUser); err != nil {
		return nil, false, unavailable(err)
	}

	if s.Provider == nil {
		return nil, false, fmt.Errorf("%w: %v", ErrProviderFailure, primepag.ErrNotConfigured)
	}
	charge, err := s.Provider.CreateCharge(ctx, primepag.ChargeRequest{
		AmountCents:       amountCents,
		ExternalReference: idempotentID,
		ExpiresIn:         domain.PaymentTTL,
	})
	if err != nil {
		observability.MarkError(span, err)
		log.Error().Err(err).Str("user_id", userID).Msg("charge creation failed")
		return nil, false, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	p := &domain.Payment{
		ID:            uuid.NewString(),
		ReferenceCode: charge.ReferenceCode,
		IdempotentID:  idempotentID,
		UserID:        userID,
		AmountCents:   amountCents,
		Status:        domain.PaymentPending,
		PixCopiaECola: charge.Content,
		QRCodeImage:   charge.ImageBase64,
		CreatedAt:     now,
		ExpiresAt:     now.Add(domain.PaymentTTL),
		UpdatedAt:     now,
	}
	if err := repo.CreatePayment(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, false, ErrIdempotencyConflict
		}
		return nil, false, err
	}
	span.SetAttributes(attribute.String("payment.id", p.ID))
	log.Info().Str("payment_id", p.ID).Str("reference_code", p.ReferenceCode).Str("user_id", userID).
		Int64("amount_cents", amountCents).Msg("payment created")

	publish(ctx, s.Events, events.Event{
		Type: events.PaymentCreated, Key: p.ID, UserID: userID, PaymentID: p.ID,
		Reference: p.ReferenceCode, Status: string(p.Status), AmountCents: amountCents, OccurredAt: now,
	})
	return p, true, nil
}

// Resolve finds one of userID's payments by internal id, reference code or
// idempotent id, in that order.
func (s *PixService) Resolve(ctx context.Context, userID, ident string) (*domain.Payment, error) {
	p, err := repo.ResolvePayment(ctx, s.DB, userID, ident)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return p, nil
}

// Active returns the user's latest unexpired active payment, or nil.
func (s *PixService) Active(ctx context.Context, userID string) (*domain.Payment, error) {
	p, err := repo.LatestActivePayment(ctx, s.DB, userID, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return p, nil
}

// ListPage returns a page of the user's payments, newest first.
func (s *PixService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Payment, int64, error) {
	page, pageSize = utils.Normalize(page, pageSize)
	total, err := repo.CountPayments(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	if total == 0 {
		return []domain.Payment{}, 0, nil
	}
	items, err := repo.ListPaymentsPage(ctx, s.DB, userID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return items, total, nil
}

// Status resolves a payment and brings it up to date: a stale active payment
// is expired on the spot, and when polling is enabled a still-active payment
// picks up the provider's current status through the same transition routine
// the webhook uses.
func (s *PixService) Status(ctx context.Context, userID, ident string) (*domain.Payment, error) {
	ctx, span := otel.Tracer("services/PixService").Start(ctx, "Status",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	p, err := s.Resolve(ctx, userID, ident)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.id", p.ID))

	now := s.now()
	if p.StaleAt(now) {
		ok, err := repo.TransitionPayment(ctx, s.DB, p.ID, domain.PaymentExpired, now)
		if err != nil {
			return nil, err
		}
		if ok {
			s.transitioned(ctx, p, domain.PaymentExpired, now)
		}
		return s.reload(ctx, p)
	}

	if !p.Status.IsActive() || !s.Poll || s.Provider == nil {
		return p, nil
	}

	charge, err := s.Provider.GetCharge(ctx, p.ReferenceCode)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", p.ID).Msg("provider status poll failed")
		return p, nil
	}
	to, ok := primepag.MapStatus(charge.Status)
	if !ok || to == p.Status {
		return p, nil
	}
	if to == domain.PaymentPaid && charge.ValueCents != 0 && charge.ValueCents != p.AmountCents {
		log.Warn().Str("payment_id", p.ID).Int64("provider_cents", charge.ValueCents).
			Msg("provider reports a different amount; ignoring")
		return p, nil
	}

	var applied bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = applyPaymentStatus(ctx, tx, p, to, now)
		return err
	})
	if err != nil && !errors.Is(err, ErrStatusConflict) {
		return nil, err
	}
	if applied {
		s.transitioned(ctx, p, to, now)
	}
	return s.reload(ctx, p)
}

// Cancel cancels one of userID's active payments. Payments already paid,
// expired, cancelled or failed yield ErrNotCancellable and stay untouched.
func (s *PixService) Cancel(ctx context.Context, userID, ident string) (*domain.Payment, error) {
	ctx, span := otel.Tracer("services/PixService").Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	p, err := s.Resolve(ctx, userID, ident)
	if err != nil {
		return nil, err
	}
	if !p.Status.IsActive() {
		return nil, ErrNotCancellable
	}
	now := s.now()
	ok, err := repo.TransitionPayment(ctx, s.DB, p.ID, domain.PaymentCancelled, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCancellable
	}
	s.transitioned(ctx, p, domain.PaymentCancelled, now)
	return s.reload(ctx, p)
}

// CancelAllPending cancels every active payment of userID and returns how
// many were cancelled.
func (s *PixService) CancelAllPending(ctx context.Context, userID string) (int64, error) {
	now := s.now()
	n, err := repo.CancelActivePayments(ctx, s.DB, userID, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		paymentTransitions.WithLabelValues(string(domain.PaymentCancelled)).Add(float64(n))
		log.Info().Str("user_id", userID).Int64("count", n).Msg("pending payments cancelled")
	}
	return n, nil
}

// ExpireStale expires every active payment created at least PaymentTTL ago
// and returns how many rows changed. Repeated or concurrent calls are safe;
// a second sweep finds nothing to do.
func (s *PixService) ExpireStale(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("services/PixService").Start(ctx, "ExpireStale")
	defer span.End()

	now := s.now()
	n, err := repo.ExpireStalePayments(ctx, s.DB, now.Add(-domain.PaymentTTL), now)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("payments.expired", n))
	if n > 0 {
		paymentTransitions.WithLabelValues(string(domain.PaymentExpired)).Add(float64(n))
		log.Info().Int64("count", n).Msg("stale payments expired")
		publish(ctx, s.Events, events.Event{Type: events.PaymentsExpired, Key: "sweep", Count: n, OccurredAt: now})
	}
	return n, nil
}

// CountStale returns how many payments ExpireStale would expire right now.
func (s *PixService) CountStale(ctx context.Context) (int64, error) {
	n, err := repo.CountStalePayments(ctx, s.DB, s.now().Add(-domain.PaymentTTL))
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Stats returns count and amount per payment status.
func (s *PixService) Stats(ctx context.Context) ([]repo.StatusTotal, error) {
	out, err := repo.PaymentStats(ctx, s.DB)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PixService) reload(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	fresh, err := repo.GetPayment(ctx, s.DB, p.ID)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *PixService) transitioned(ctx context.Context, p *domain.Payment, to domain.PaymentStatus, at time.Time) {
	paymentTransitions.WithLabelValues(string(to)).Inc()
	log.Info().Str("payment_id", p.ID).Str("reference_code", p.ReferenceCode).
		Str("from", string(p.Status)).Str("to", string(to)).Msg("payment status changed")
	publish(ctx, s.Events, paymentEvent(p, to, at))
}

// applyPaymentStatus moves p to status to inside tx. It reports false with no
// error when p is already in to (a duplicate delivery), and ErrStatusConflict
// when p reached a different terminal state. Reaching paid credits the owner's
// wallet in the same transaction, so a payment can be credited at most once.
func applyPaymentStatus(ctx context.Context, tx *gorm.DB, p *domain.Payment, to domain.PaymentStatus, at time.Time) (bool, error) {
	current := p.Status
	for attempt := 0; attempt < 2; attempt++ {
		if current == to {
			return false, nil
		}
		if !domain.CanTransition(current, to) {
			return false, ErrStatusConflict
		}
		ok, err := repo.TransitionPayment(ctx, tx, p.ID, to, at)
		if err != nil {
			return false, err
		}
		if ok {
			if to == domain.PaymentPaid {
				wt, err := repo.ApplyLedgerEntry(ctx, tx, domain.LedgerEntry{
					UserID:        p.UserID,
					Type:          domain.EntryCredit,
					AmountCents:   p.AmountCents,
					Description:   "Depósito PIX " + FormatBRL(p.AmountCents),
					ReferenceType: domain.RefPayment,
					ReferenceID:   p.ID,
				}, at)
				if err != nil {
					return false, err
				}
				ledgerEntries.WithLabelValues(wt.Type).Inc()
			}
			return true, nil
		}
		// Lost a race; classify against the state that won.
		fresh, err := repo.GetPayment(ctx, tx, p.ID)
		if err != nil {
			return false, err
		}
		current = fresh.Status
	}
	return false, ErrStatusConflict
}

func paymentEvent(p *domain.Payment, to domain.PaymentStatus, at time.Time) events.Event {
	return events.Event{
		Type:        events.PaymentStatus,
		Key:         p.ID,
		UserID:      p.UserID,
		PaymentID:   p.ID,
		Reference:   p.ReferenceCode,
		Status:      string(to),
		AmountCents: p.AmountCents,
		OccurredAt:  at,
	}
}

// publish sends ev when a publisher is configured. Delivery failures are
// logged by the publisher and never fail the request.
func publish(ctx context.Context, p events.Publisher, ev events.Event) {
	if p == nil {
		return
	}
	_ = p.Publish(ctx, ev)
}
