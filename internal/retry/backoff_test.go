package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	sentinel := errors.New("down")
	err := Do(context.Background(), fastConfig(2), "op", func(context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, sentinel) || !strings.Contains(err.Error(), "retry limit exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := Do(context.Background(), fastConfig(5), "op", func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if calls != 1 || err != sentinel {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must be nil")
	}
}

func TestDo_RetryablePredicate(t *testing.T) {
	calls := 0
	cfg := fastConfig(5)
	cfg.Retryable = func(error) bool { return false }
	_ = Do(context.Background(), cfg, "op", func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("non-retryable error retried %d times", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(3), "op", func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDelay_CapsAndGrows(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	if d := Delay(cfg, 0); d != 100*time.Millisecond {
		t.Fatalf("attempt 0 delay = %v", d)
	}
	if d := Delay(cfg, 1); d != 200*time.Millisecond {
		t.Fatalf("attempt 1 delay = %v", d)
	}
	if d := Delay(cfg, 5); d != 300*time.Millisecond {
		t.Fatalf("capped delay = %v", d)
	}
	cfg.Jitter = true
	if d := Delay(cfg, 0); d < 100*time.Millisecond || d > 110*time.Millisecond {
		t.Fatalf("jittered delay out of range: %v", d)
	}
}
