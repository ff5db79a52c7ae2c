// Package handlers exposes the panel's REST endpoints.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results and errors into the JSON envelope. The
// authenticated identity comes from middleware.Authenticate.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/services"
)

//
// Service contracts (context-aware)
//

// PixService covers charge lifecycle operations.
type PixService interface {
	Create(ctx context.Context, userID string, amountCents int64, idempotentID string) (*domain.Payment, bool, error)
	Active(ctx context.Context, userID string) (*domain.Payment, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Payment, int64, error)
	Status(ctx context.Context, userID, ident string) (*domain.Payment, error)
	Cancel(ctx context.Context, userID, ident string) (*domain.Payment, error)
	CancelAllPending(ctx context.Context, userID string) (int64, error)
	ExpireStale(ctx context.Context) (int64, error)
	CountStale(ctx context.Context) (int64, error)
	Stats(ctx context.Context) ([]repo.StatusTotal, error)
}

// WebhookService ingests provider notifications.
type WebhookService interface {
	Handle(ctx context.Context, body []byte) (*services.WebhookResult, error)
	ListEvents(ctx context.Context, reference string, page, pageSize int) ([]domain.WebhookEvent, int64, error)
}

// WalletService reads and adjusts balances.
type WalletService interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Ledger(ctx context.Context, userID string, page, pageSize int) (int64, []domain.WalletTransaction, int64, error)
	Adjust(ctx context.Context, adminID, userID, entryType string, amountCents int64, description string) (*domain.WalletTransaction, error)
}

// PhotoService serves the catalogue and purchases.
type PhotoService interface {
	Catalog(ctx context.Context, userID string) ([]services.CatalogItem, error)
	Purchased(ctx context.Context, userID string) ([]domain.Photo, error)
	Purchase(ctx context.Context, userID, photoID string) (*services.PurchaseResult, error)
	Create(ctx context.Context, title, imageURL string, priceCents int64) (*domain.Photo, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// WithdrawalService covers payout requests and their review.
type WithdrawalService interface {
	Request(ctx context.Context, userID string, req services.WithdrawalRequest) (*domain.Withdrawal, bool, error)
	Get(ctx context.Context, userID, id string) (*domain.Withdrawal, error)
	ListMine(ctx context.Context, userID string, page, pageSize int) ([]domain.Withdrawal, int64, error)
	ListAll(ctx context.Context, status string, page, pageSize int) (*services.WithdrawalPage, error)
	Review(ctx context.Context, adminID, id, decision, notes string) (*domain.Withdrawal, error)
	Process(ctx context.Context, adminID, id, status, notes string) (*domain.Withdrawal, error)
}

// ConfigService reads and writes operational settings.
type ConfigService interface {
	List(ctx context.Context) ([]domain.AdminConfig, error)
	Set(ctx context.Context, adminID, key, value, description string) (*domain.AdminConfig, error)
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers.
type Services struct {
	Pix         PixService
	Webhook     WebhookService
	Wallet      WalletService
	Photos      PhotoService
	Withdrawals WithdrawalService
	Config      ConfigService

	// MaxWebhookBody caps notification bodies; <= 0 means 64 KiB.
	MaxWebhookBody int64
	// Now is the clock used in responses; defaults to time.Now.
	Now func() time.Time
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	pix         PixService
	webhook     WebhookService
	wallet      WalletService
	photos      PhotoService
	withdrawals WithdrawalService
	config      ConfigService

	maxWebhookBody int64
	now            func() time.Time
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	h := &Handlers{
		pix:            s.Pix,
		webhook:        s.Webhook,
		wallet:         s.Wallet,
		photos:         s.Photos,
		withdrawals:    s.Withdrawals,
		config:         s.Config,
		maxWebhookBody: s.MaxWebhookBody,
		now:            s.Now,
	}
	if h.maxWebhookBody <= 0 {
		h.maxWebhookBody = 64 << 10
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}
