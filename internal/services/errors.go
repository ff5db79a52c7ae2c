// Package services implements the business logic for PIX charges, webhook
// ingestion, the wallet ledger, photo purchases, withdrawals and admin
// configuration. This file centralizes the service-level error values so that
// they can be returned consistently by service methods and checked by callers.
//
// Translation into HTTP status codes happens in the handler layer through
// KindOf, which classifies every sentinel below.
package services

import (
	"errors"

	"github.com/tbourn/pix-panel/internal/repo"
)

// Kind classifies a failure for transport mapping.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindConflict           Kind = "conflict"
	KindUpstreamFailure    Kind = "upstream_failure"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal           Kind = "internal"
)

// Payment errors.
var (
	// ErrPaymentNotFound indicates that no payment matches the identifier for
	// the current user, or no payment carries the webhook reference code.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidAmount is returned when a charge amount is not positive or
	// falls outside the configured bounds.
	ErrInvalidAmount = errors.New("amount out of range")

	// ErrNotCancellable is returned when a payment is no longer pending or
	// awaiting payment.
	ErrNotCancellable = errors.New("payment can no longer be cancelled")

	// ErrProviderFailure wraps failures of the payment provider API.
	ErrProviderFailure = errors.New("payment provider unavailable")

	// ErrIdempotencyConflict is returned when an idempotency key is already
	// bound to a payment of another user.
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

// Webhook errors.
var (
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidNotification  = errors.New("invalid notification")
	ErrNotificationMismatch = errors.New("notification does not match payment")
	ErrUnknownStatus        = errors.New("unknown provider status")

	// ErrStatusConflict is returned when a notification asks for a terminal
	// status different from the one the payment already reached.
	ErrStatusConflict = errors.New("payment already in a different terminal state")
)

// Wallet and purchase errors.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidEntry        = errors.New("invalid ledger entry")
	ErrPhotoNotFound       = errors.New("photo not found")
	ErrPhotoInactive       = errors.New("photo is not available")
	ErrAlreadyPurchased    = errors.New("photo already purchased")
	ErrInvalidPhoto        = errors.New("invalid photo")
)

// Withdrawal errors.
var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrInvalidWithdrawal  = errors.New("invalid withdrawal request")
	ErrInvalidDecision    = errors.New("invalid review decision")

	// ErrWithdrawalState is returned when the requested move is not allowed
	// from the withdrawal's current status.
	ErrWithdrawalState = errors.New("withdrawal cannot move to the requested status")
)

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration entry")
	ErrConfigMissing = errors.New("configuration key not found")
)

// ErrUnavailable is returned when the database cannot serve a read. Callers
// get an explicit failure instead of a fabricated value.
var ErrUnavailable = errors.New("service temporarily unavailable")

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidSignature, KindUnauthorized},
	{ErrPaymentNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrPhotoNotFound, KindNotFound},
	{ErrWithdrawalNotFound, KindNotFound},
	{ErrConfigMissing, KindNotFound},
	{ErrNotCancellable, KindConflict},
	{ErrStatusConflict, KindConflict},
	{ErrWithdrawalState, KindConflict},
	{ErrIdempotencyConflict, KindConflict},
	{ErrInvalidAmount, KindInvalidInput},
	{ErrInvalidNotification, KindInvalidInput},
	{ErrNotificationMismatch, KindInvalidInput},
	{ErrUnknownStatus, KindInvalidInput},
	{ErrInsufficientBalance, KindInvalidInput},
	{ErrInvalidEntry, KindInvalidInput},
	{ErrPhotoInactive, KindInvalidInput},
	{ErrAlreadyPurchased, KindInvalidInput},
	{ErrInvalidPhoto, KindInvalidInput},
	{ErrInvalidWithdrawal, KindInvalidInput},
	{ErrInvalidDecision, KindInvalidInput},
	{ErrInvalidConfig, KindInvalidInput},
	{ErrProviderFailure, KindUpstreamFailure},
	{ErrUnavailable, KindServiceUnavailable},
}

// KindOf classifies err. Unknown errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// unavailable wraps a failed read so that it surfaces as ErrUnavailable.
// Not-found results pass through untouched.
func unavailable(err error) error {
	if err == nil || errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
