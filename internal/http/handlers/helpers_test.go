package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
	"github.com/tbourn/pix-panel/internal/primepag"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/services"
)

const webhookSecret = "hook-secret"

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

type stubProvider struct {
	mu sync.Mutex
	n  int
}

func (p *stubProvider) CreateCharge(_ context.Context, req primepag.ChargeRequest) (*primepag.Charge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	ref := fmt.Sprintf("REF-%d", p.n)
	return &primepag.Charge{
		ReferenceCode:     ref,
		ExternalReference: req.ExternalReference,
		Content:           "00020126-" + ref,
		ImageBase64:       "iVBORw0KGgo=",
		ValueCents:        req.AmountCents,
		Status:            "pending",
	}, nil
}

func (p *stubProvider) GetCharge(_ context.Context, ref string) (*primepag.Charge, error) {
	return &primepag.Charge{ReferenceCode: ref, Status: "pending"}, nil
}

type env struct {
	t  *testing.T
	db *gorm.DB
	r  *gin.Engine
}

// newEnv wires real services over a one-connection SQLite file and mounts
// the handlers without authentication; X-Test-User and X-Test-Role stand in
// for the session token.
func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	h := New(Services{
		Pix:         &services.PixService{DB: db, Provider: &stubProvider{}, MinAmountCents: 100, MaxAmountCents: 1_000_000},
		Webhook:     &services.WebhookService{DB: db, Secret: webhookSecret},
		Wallet:      &services.WalletService{DB: db},
		Photos:      &services.PhotoService{DB: db},
		Withdrawals: &services.WithdrawalService{DB: db},
		Config:      &services.ConfigService{DB: db},
	})

	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set(middleware.UserIDKey, uid)
			c.Set(middleware.RoleKey, c.GetHeader("X-Test-Role"))
		}
		c.Next()
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))

	r.POST("/pix/create", h.CreatePix)
	r.GET("/pix/active", h.ActivePix)
	r.GET("/pix/payments", h.ListPix)
	r.GET("/pix/status/:id", h.PixStatus)
	r.POST("/pix/cancel/:id", h.CancelPix)
	r.POST("/pix/cancel-all-pending", h.CancelAllPix)
	r.POST("/pix/expire-payments", h.ExpirePayments)
	r.POST("/webhook/primepag", h.PrimePagWebhook)
	r.GET("/photos", h.ListPhotos)
	r.GET("/photos/purchased", h.PurchasedPhotos)
	r.POST("/photos/purchase", h.PurchasePhoto)
	r.GET("/user/balance", h.Balance)
	r.GET("/user/wallet", h.Wallet)
	r.GET("/user/withdrawals", h.ListMyWithdrawals)
	r.POST("/user/withdrawals", h.RequestWithdrawal)
	r.GET("/user/withdrawals/:id", h.GetWithdrawal)
	r.GET("/admin/withdrawals", h.AdminListWithdrawals)
	r.POST("/admin/withdrawals/:id/review", h.ReviewWithdrawal)
	r.POST("/admin/withdrawals/:id/process", h.ProcessWithdrawal)
	r.GET("/admin/config", h.ListConfig)
	r.POST("/admin/config", h.SetConfig)
	r.POST("/admin/users/:id/balance", h.AdjustBalance)
	r.GET("/admin/pix/check-expired", h.CheckExpired)
	r.GET("/admin/payments/stats", h.PaymentStats)
	r.GET("/admin/webhook-events", h.ListWebhookEvents)
	r.POST("/admin/photos", h.CreatePhoto)
	r.PATCH("/admin/photos/:id/active", h.SetPhotoActive)

	return &env{t: t, db: db, r: r}
}

func (e *env) seedUser(id string, balance int64) {
	e.t.Helper()
	if err := e.db.Create(&domain.User{ID: id, Role: domain.RoleUser, BalanceCents: balance}).Error; err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
}

// do sends a request as user (empty for anonymous) and decodes the body
// into out when out is non-nil.
func (e *env) do(method, path, user string, body any, out any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
		role := domain.RoleUser
		if user == "admin" {
			role = domain.RoleAdmin
		}
		req.Header.Set("X-Test-Role", role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			e.t.Fatalf("decode %s %s (%d): %v: %s", method, path, w.Code, err, w.Body.String())
		}
	}
	return w
}

func (e *env) expectError(w *httptest.ResponseRecorder, status int, code string) {
	e.t.Helper()
	if w.Code != status {
		e.t.Fatalf("status = %d; want %d: %s", w.Code, status, w.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		e.t.Fatalf("decode error body: %v", err)
	}
	if resp.Success || resp.Code != code || resp.RequestID == "" {
		e.t.Fatalf("error body = %+v; want code %q", resp, code)
	}
}

func signedNotification(ref, idem string, cents int64, status string) []byte {
	b, _ := json.Marshal(map[string]any{
		"notification_type": primepag.NotificationTypePix,
		"message": map[string]any{
			"value_cents":    cents,
			"reference_code": ref,
			"idempotent_id":  idem,
			"status":         status,
		},
		"md5": primepag.Signature(ref, idem, cents, webhookSecret),
	})
	return b
}
