// Package retry runs an operation with capped exponential backoff. It is used
// for outbound calls to the payment provider, where transient network and 5xx
// failures are common and the operation is safe to repeat.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Func is one attempt of a retryable operation.
type Func func(ctx context.Context) error

// Config holds retry configuration.
type Config struct {
	MaxRetries int              // retries after the first attempt
	BaseDelay  time.Duration    // delay before the first retry
	MaxDelay   time.Duration    // upper bound for any single delay
	Multiplier float64          // exponential growth factor
	Jitter     bool             // add up to 10% random delay
	Retryable  func(error) bool // nil means every error is retryable
}

// DefaultConfig returns a conservative configuration for HTTP calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do stops immediately and returns err unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// context ends, or the retry budget is spent.
func Do(ctx context.Context, cfg Config, op string, fn Func) error {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		l := log.Logger
		logger = &l
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info().Str("op", op).Int("attempt", attempt+1).Msg("succeeded after retries")
			}
			return nil
		}

		var p permanent
		if errors.As(err, &p) {
			return p.err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}

		delay := Delay(cfg, attempt)
		logger.Debug().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	logger.Warn().Err(lastErr).Str("op", op).Int("attempts", cfg.MaxRetries+1).Msg("giving up")
	return fmt.Errorf("retry limit exceeded after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// Delay returns the backoff before retry number attempt+1.
func Delay(cfg Config, attempt int) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(cfg.BaseDelay) * math.Pow(mult, float64(attempt))
	if cfg.MaxDelay > 0 && d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		d += d * 0.1 * rand.Float64()
	}
	return time.Duration(d)
}
