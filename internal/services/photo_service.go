// Package services – PhotoService
//
// PhotoService manages the photo catalogue and the purchase flow. A purchase
// records ownership, debits the buyer and bumps the photo counters inside one
// transaction. Ownership is guarded by the (photo_id, user_id) unique index
// and the debit by a conditional balance update, so concurrent attempts for
// the same pair can never charge twice.
package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PhotoService implements catalogue and purchase use-cases.
type PhotoService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
}

// CatalogItem is an active photo annotated for one viewer.
type CatalogItem struct {
	domain.Photo
	Purchased bool `json:"purchased"`
}

// PurchaseResult reports a completed purchase.
type PurchaseResult struct {
	Purchase     *domain.PhotoPurchase
	Transaction  *domain.WalletTransaction
	BalanceCents int64
}

func (s *PhotoService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Catalog lists active photos and flags the ones userID owns.
func (s *PhotoService) Catalog(ctx context.Context, userID string) ([]CatalogItem, error) {
	photos, err := repo.ListActivePhotos(ctx, s.DB)
	if err != nil {
		return nil, unavailable(err)
	}
	owned, err := repo.PurchasedPhotoIDs(ctx, s.DB, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	set := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		set[id] = struct{}{}
	}
	out := make([]CatalogItem, 0, len(photos))
	for _, p := range photos {
		_, ok := set[p.ID]
		out = append(out, CatalogItem{Photo: p, Purchased: ok})
	}
	return out, nil
}

// Purchased lists the photos userID owns.
func (s *PhotoService) Purchased(ctx context.Context, userID string) ([]domain.Photo, error) {
	out, err := repo.ListPurchasedPhotos(ctx, s.DB, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Purchase buys photoID for userID.
//
// Errors: ErrPhotoNotFound, ErrPhotoInactive, ErrAlreadyPurchased,
// ErrInsufficientBalance, ErrUserNotFound. On any error nothing is written.
func (s *PhotoService) Purchase(ctx context.Context, userID, photoID string) (*PurchaseResult, error) {
	tr := otel.Tracer("services/PhotoService")
	ctx, span := tr.Start(ctx, "Purchase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("photo.id", photoID),
		),
	)
	defer span.End()

	now := s.now()
	var res PurchaseResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ph, err := repo.GetPhoto(ctx, tx, photoID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPhotoNotFound
		}
		if err != nil {
			return err
		}
		if !ph.Active {
			return ErrPhotoInactive
		}

		pp, err := repo.CreatePhotoPurchase(ctx, tx, ph.ID, userID, ph.PriceCents, now)
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrAlreadyPurchased
		}
		if err != nil {
			return err
		}

		wt, err := repo.ApplyLedgerEntry(ctx, tx, domain.LedgerEntry{
			UserID:        userID,
			Type:          domain.EntryDebit,
			AmountCents:   ph.PriceCents,
			Description:   "Compra de foto: " + ph.Title,
			ReferenceType: domain.RefPhoto,
			ReferenceID:   ph.ID,
		}, now)
		if err != nil {
			return ledgerErr(err)
		}

		if err := repo.RecordPhotoSale(ctx, tx, ph.ID, ph.PriceCents); err != nil {
			return err
		}
		res = PurchaseResult{Purchase: pp, Transaction: wt, BalanceCents: wt.BalanceAfterCents}
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			span.RecordError(err)
		}
		return nil, err
	}

	ledgerEntries.WithLabelValues(domain.EntryDebit).Inc()
	log.Info().Str("user_id", userID).Str("photo_id", photoID).
		Int64("price_cents", res.Purchase.PriceCents).Msg("photo purchased")
	publish(ctx, s.Events, events.Event{
		Type: events.PhotoPurchased, Key: userID, UserID: userID, Reference: photoID,
		AmountCents: res.Purchase.PriceCents, OccurredAt: now,
	})
	return &res, nil
}

// Create adds a photo to the catalogue. It starts active.
func (s *PhotoService) Create(ctx context.Context, title, imageURL string, priceCents int64) (*domain.Photo, error) {
	title = strings.TrimSpace(title)
	imageURL = strings.TrimSpace(imageURL)
	if title == "" || priceCents <= 0 {
		return nil, ErrInvalidPhoto
	}
	if u, err := url.Parse(imageURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidPhoto
	}
	now := s.now()
	ph := &domain.Photo{
		ID:         uuid.NewString(),
		Title:      title,
		ImageURL:   imageURL,
		PriceCents: priceCents,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.CreatePhoto(ctx, s.DB, ph); err != nil {
		return nil, err
	}
	return ph, nil
}

// SetActive publishes or withdraws a photo.
func (s *PhotoService) SetActive(ctx context.Context, id string, active bool) error {
	err := repo.SetPhotoActive(ctx, s.DB, id, active)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPhotoNotFound
	}
	return err
}
