// Package services – WebhookService
//
// WebhookService ingests PrimePag push notifications. A delivery is parsed,
// authenticated against the shared secret, matched to a payment by reference
// code, and applied through the same conditional transition used everywhere
// else. Redeliveries of a notification that was already applied succeed
// without side effects. Every delivery, accepted or not, is kept as a
// WebhookEvent for audit.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/observability"
	"github.com/tbourn/pix-panel/internal/primepag"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const providerPrimePag = "primepag"

// WebhookService applies provider notifications to payments.
type WebhookService struct {
	DB *gorm.DB

	// Secret is the shared key used to verify the notification MAC.
	Secret string

	Events events.Publisher
	Now    func() time.Time
}

// WebhookResult describes what a delivery did.
type WebhookResult struct {
	PaymentID string
	Status    domain.PaymentStatus
	Duplicate bool
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Handle processes one raw notification body.
//
// Errors:
//   - ErrInvalidNotification: unparsable body or unsupported notification type.
//   - ErrInvalidSignature: the md5 field does not match the recomputed MAC.
//   - ErrUnknownStatus: the provider status has no local equivalent.
//   - ErrPaymentNotFound: no payment carries the reference code.
//   - ErrNotificationMismatch: idempotent id or amount differ from the payment.
//   - ErrStatusConflict: the payment already reached another terminal state.
//
// None of these mutate the payment.
func (s *WebhookService) Handle(ctx context.Context, body []byte) (*WebhookResult, error) {
	ctx, span := observability.StartSpan(ctx, "services/WebhookService", "Handle",
		attribute.String("provider", providerPrimePag))
	defer span.End()

	now := s.now()
	ev := &domain.WebhookEvent{
		ID:         uuid.NewString(),
		Provider:   providerPrimePag,
		ReceivedAt: now,
	}

	n, err := primepag.ParseNotification(body)
	if err != nil {
		s.record(ctx, ev, domain.WebhookRejected, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	ev.Payload = datatypes.JSON(body)
	ev.NotificationType = n.NotificationType
	ev.ReferenceCode = n.Message.Reference()
	ev.IdempotentID = n.Message.Idempotent()
	ev.Status = n.Message.Status
	span.SetAttributes(
		attribute.String("payment.reference", n.Message.Reference()),
		attribute.String("provider.status", n.Message.Status),
	)

	if n.NotificationType != primepag.NotificationTypePix {
		err := fmt.Errorf("%w: unsupported type %q", ErrInvalidNotification, n.NotificationType)
		s.record(ctx, ev, domain.WebhookRejected, err)
		return nil, err
	}
	if !n.Verify(s.Secret) {
		log.Warn().Str("reference_code", n.Message.Reference()).Msg("webhook signature mismatch")
		s.record(ctx, ev, domain.WebhookRejected, ErrInvalidSignature)
		return nil, ErrInvalidSignature
	}
	ev.SignatureValid = true

	to, ok := primepag.MapStatus(n.Message.Status)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownStatus, n.Message.Status)
		s.record(ctx, ev, domain.WebhookRejected, err)
		return nil, err
	}

	at := now
	switch to {
	case domain.PaymentPaid:
		if n.Message.PaymentDate != nil {
			if t, ok := primepag.ParseTime(*n.Message.PaymentDate); ok {
				at = t.UTC()
			}
		}
	case domain.PaymentCancelled:
		if n.Message.CancellationDate != nil {
			if t, ok := primepag.ParseTime(*n.Message.CancellationDate); ok {
				at = t.UTC()
			}
		}
	}

	var (
		p       *domain.Payment
		applied bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = repo.GetPaymentByReference(ctx, tx, n.Message.Reference())
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		if p.IdempotentID != n.Message.Idempotent() || p.AmountCents != n.Message.ValueCents {
			return ErrNotificationMismatch
		}
		applied, err = applyPaymentStatus(ctx, tx, p, to, at)
		return err
	})
	if err != nil {
		result := domain.WebhookRejected
		if KindOf(err) == KindInternal {
			result = domain.WebhookFailed
			span.RecordError(err)
			log.Error().Err(err).Str("reference_code", n.Message.Reference()).Msg("webhook apply failed")
		}
		s.record(ctx, ev, result, err)
		return nil, err
	}

	res := &WebhookResult{PaymentID: p.ID, Status: to, Duplicate: !applied}
	if applied {
		s.record(ctx, ev, domain.WebhookApplied, nil)
		paymentTransitions.WithLabelValues(string(to)).Inc()
		log.Info().Str("payment_id", p.ID).Str("reference_code", p.ReferenceCode).
			Str("from", string(p.Status)).Str("to", string(to)).Msg("webhook applied")
		publish(ctx, s.Events, paymentEvent(p, to, at))
	} else {
		s.record(ctx, ev, domain.WebhookDuplicate, nil)
		log.Info().Str("payment_id", p.ID).Str("status", string(to)).Msg("webhook duplicate ignored")
	}
	return res, nil
}

// ListEvents returns a page of recorded deliveries, optionally filtered by
// reference code.
func (s *WebhookService) ListEvents(ctx context.Context, reference string, page, pageSize int) ([]domain.WebhookEvent, int64, error) {
	page, pageSize = utils.Normalize(page, pageSize)
	total, err := repo.CountWebhookEvents(ctx, s.DB, reference)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	if total == 0 {
		return []domain.WebhookEvent{}, 0, nil
	}
	items, err := repo.ListWebhookEventsPage(ctx, s.DB, reference, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return items, total, nil
}

// record stores the delivery outcome. Audit failures are logged only.
func (s *WebhookService) record(ctx context.Context, ev *domain.WebhookEvent, result string, cause error) {
	webhookDeliveries.WithLabelValues(result).Inc()
	ev.Result = result
	if result != domain.WebhookApplied && result != domain.WebhookDuplicate {
		observability.MarkError(trace.SpanFromContext(ctx), cause)
	}
	if cause != nil {
		msg := cause.Error()
		ev.Error = &msg
	}
	if err := repo.CreateWebhookEvent(ctx, s.DB, ev); err != nil {
		log.Error().Err(err).Str("reference_code", ev.ReferenceCode).Msg("webhook audit write failed")
	}
}
