package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/primepag"
	"github.com/tbourn/pix-panel/internal/repo"
)

const testSecret = "s3cr3t"

// newServiceDB opens a migrated SQLite file limited to one connection so
// concurrent callers are serialized deterministically.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
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
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, balance int64) {
	t.Helper()
	if err := db.Create(&domain.User{ID: id, Role: domain.RoleUser, BalanceCents: balance}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func balanceOf(t *testing.T, db *gorm.DB, id string) int64 {
	t.Helper()
	u, err := repo.GetUser(context.Background(), db, id)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return u.BalanceCents
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeProvider issues sequential reference codes and reports a settable
// status on polls.
type fakeProvider struct {
	mu         sync.Mutex
	created    int
	createErr  error
	pollErr    error
	pollStatus string
	pollValue  int64
}

func (f *fakeProvider) CreateCharge(_ context.Context, req primepag.ChargeRequest) (*primepag.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	ref := fmt.Sprintf("REF-%d", f.created)
	return &primepag.Charge{
		ReferenceCode:     ref,
		ExternalReference: req.ExternalReference,
		Content:           "00020126-" + ref,
		ImageBase64:       "iVBORw0KGgo=",
		ValueCents:        req.AmountCents,
		Status:            "pending",
	}, nil
}

func (f *fakeProvider) GetCharge(_ context.Context, ref string) (*primepag.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return &primepag.Charge{ReferenceCode: ref, Status: f.pollStatus, ValueCents: f.pollValue}, nil
}

func (f *fakeProvider) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// fixture wires the payment services against one database and clock.
type fixture struct {
	db       *gorm.DB
	clock    *clock
	provider *fakeProvider
	events   *recorder
	pix      *PixService
	webhook  *WebhookService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newServiceDB(t)
	c := newClock()
	p := &fakeProvider{}
	rec := &recorder{}
	return &fixture{
		db: db, clock: c, provider: p, events: rec,
		pix: &PixService{
			DB: db, Provider: p, Events: rec, Now: c.Now,
			MinAmountCents: 100, MaxAmountCents: 1_000_000,
		},
		webhook: &WebhookService{DB: db, Secret: testSecret, Events: rec, Now: c.Now},
	}
}

func (f *fixture) createPayment(t *testing.T, userID string, cents int64, key string) *domain.Payment {
	t.Helper()
	p, created, err := f.pix.Create(context.Background(), userID, cents, key)
	if err != nil || !created {
		t.Fatalf("Create: created=%v err=%v", created, err)
	}
	return p
}

// notification builds a webhook body signed with secret.
func notification(ref, idem string, cents int64, status, secret string) []byte {
	return notificationWith(ref, idem, cents, status, secret, nil)
}

func notificationWith(ref, idem string, cents int64, status, secret string, extra map[string]any) []byte {
	msg := map[string]any{
		"value_cents":    cents,
		"reference_code": ref,
		"idempotent_id":  idem,
		"status":         status,
	}
	for k, v := range extra {
		msg[k] = v
	}
	b, _ := json.Marshal(map[string]any{
		"notification_type": primepag.NotificationTypePix,
		"message":           msg,
		"md5":               primepag.Signature(ref, idem, cents, secret),
	})
	return b
}

var errBoom = errors.New("boom")
