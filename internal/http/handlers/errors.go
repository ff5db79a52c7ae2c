// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror the service error kinds;
// a few domain codes single out failures the panel shows a dedicated message
// for. failErr is the one place where service errors become HTTP responses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/pix-panel/internal/services"
)

const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeUpstream           = "upstream_failure"
	ErrCodeUnavailable        = "service_unavailable"
	ErrCodeRateLimited        = "too_many_requests"
	ErrCodeInternal           = "internal_error"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
	ErrCodePayloadTooLarge    = "payload_too_large"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodeInsufficientFunds  = "insufficient_balance"
	ErrCodeAlreadyPurchased   = "already_purchased"
	ErrCodeInvalidAmount      = "invalid_amount"
	ErrCodeInvalidPixKey      = "invalid_pix_key"
	ErrCodeInvalidIdempotency = "bad_idempotency_key"
)

var kindStatus = map[services.Kind]struct {
	status int
	code   string
}{
	services.KindUnauthorized:       {http.StatusUnauthorized, ErrCodeUnauthorized},
	services.KindForbidden:          {http.StatusForbidden, ErrCodeForbidden},
	services.KindNotFound:           {http.StatusNotFound, ErrCodeNotFound},
	services.KindInvalidInput:       {http.StatusBadRequest, ErrCodeInvalidInput},
	services.KindConflict:           {http.StatusBadRequest, ErrCodeConflict},
	services.KindUpstreamFailure:    {http.StatusBadGateway, ErrCodeUpstream},
	services.KindServiceUnavailable: {http.StatusServiceUnavailable, ErrCodeUnavailable},
}

// Sentinels with a more specific code than their kind.
var specificCodes = []struct {
	err  error
	code string
}{
	{services.ErrInvalidSignature, ErrCodeInvalidSignature},
	{services.ErrInsufficientBalance, ErrCodeInsufficientFunds},
	{services.ErrAlreadyPurchased, ErrCodeAlreadyPurchased},
	{services.ErrInvalidAmount, ErrCodeInvalidAmount},
}

// failErr writes the response for a service error.
func failErr(c *gin.Context, err error) {
	m, known := kindStatus[services.KindOf(err)]
	if !known {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	code := m.code
	for _, s := range specificCodes {
		if errors.Is(err, s.err) {
			code = s.code
			break
		}
	}
	msg := err.Error()
	if m.status == http.StatusServiceUnavailable {
		_ = c.Error(err)
		msg = services.ErrUnavailable.Error()
	}
	fail(c, m.status, code, msg)
}
