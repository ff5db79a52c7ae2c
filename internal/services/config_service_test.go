package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/pix-panel/internal/domain"
)

type memCache struct {
	mu     sync.Mutex
	data   map[string]string
	gets   int
	getErr error
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func TestConfig_SetAndList(t *testing.T) {
	s := &ConfigService{DB: newServiceDB(t)}
	ctx := context.Background()

	got, err := s.Set(ctx, "admin", " Support.Phone ", "+55 11 99999-0000", " atendimento ")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got.Key != "support.phone" || got.Description != "atendimento" || got.UpdatedBy != "admin" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if _, err := s.Set(ctx, "admin", "support.phone", "+55 11 98888-0000", ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := s.List(ctx)
	if err != nil || len(all) != 1 || all[0].Value != "+55 11 98888-0000" {
		t.Fatalf("List = %+v, %v", all, err)
	}
}

func TestConfig_SetRejectsBadKeys(t *testing.T) {
	s := &ConfigService{DB: newServiceDB(t)}
	for _, key := range []string{"", "  ", "-leading", "has space", "semi;colon"} {
		if _, err := s.Set(context.Background(), "admin", key, "v", ""); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Set(%q) = %v; want ErrInvalidConfig", key, err)
		}
	}
}

func TestConfig_ValueReadsThroughCache(t *testing.T) {
	cache := newMemCache()
	s := &ConfigService{DB: newServiceDB(t), Cache: cache}
	ctx := context.Background()

	if _, err := s.Value(ctx, "missing"); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("missing key: %v", err)
	}
	if _, err := s.Set(ctx, "admin", "fee", "150", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Value(ctx, "fee"); err != nil || v != "150" {
		t.Fatalf("Value = %q, %v", v, err)
	}
	if !cache.has("fee") {
		t.Fatalf("value not cached after read")
	}

	if _, err := s.Set(ctx, "admin", "fee", "200", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cache.has("fee") {
		t.Fatalf("write did not invalidate cache")
	}
	if v, _ := s.Value(ctx, "fee"); v != "200" {
		t.Fatalf("stale value %q after update", v)
	}
}

func TestConfig_CacheFailureFallsBackToDB(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errBoom
	s := &ConfigService{DB: newServiceDB(t), Cache: cache}
	ctx := context.Background()
	if _, err := s.Set(ctx, "admin", "fee", "150", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Value(ctx, "fee"); err != nil || v != "150" {
		t.Fatalf("Value = %q, %v", v, err)
	}
}

func TestConfig_MaintenanceMode(t *testing.T) {
	s := &ConfigService{DB: newServiceDB(t)}
	ctx := context.Background()

	if s.MaintenanceMode(ctx) {
		t.Fatalf("missing flag should read as off")
	}
	for value, want := range map[string]bool{"true": true, "1": true, "false": false, "banana": false} {
		if _, err := s.Set(ctx, "admin", domain.ConfigMaintenanceMode, value, ""); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if got := s.MaintenanceMode(ctx); got != want {
			t.Fatalf("MaintenanceMode with %q = %v; want %v", value, got, want)
		}
	}
}

func TestConfig_ListUnavailable(t *testing.T) {
	s := &ConfigService{DB: newServiceDB(t)}
	sqlDB, _ := s.DB.DB()
	_ = sqlDB.Close()
	if _, err := s.List(context.Background()); KindOf(err) != KindServiceUnavailable {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}
