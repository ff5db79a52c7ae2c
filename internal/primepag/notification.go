package primepag

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/pix-panel/internal/domain"
)

// NotificationTypePix is the only notification type the panel processes.
const NotificationTypePix = "pix_payment"

// ErrMalformed is returned when a notification body cannot be used.
var ErrMalformed = errors.New("malformed notification")

// Message is the payment section of a notification.
type Message struct {
	ValueCents       int64   `json:"value_cents"`
	ReferenceCode    string  `json:"reference_code"`
	IdempotentID     string  `json:"idempotent_id"`
	Status           string  `json:"status"`
	PaymentDate      *string `json:"payment_date,omitempty"`
	CancellationDate *string `json:"cancellation_date,omitempty"`
	EndToEndID       string  `json:"end_to_end_id,omitempty"`
	PayerName        string  `json:"payer_name,omitempty"`
	PayerDocument    string  `json:"payer_document,omitempty"`
}

// Reference is the reference code used for lookups, without surrounding
// blanks. The signature is always checked over the field as received.
func (m Message) Reference() string { return strings.TrimSpace(m.ReferenceCode) }

// Idempotent is the trimmed idempotent id.
func (m Message) Idempotent() string { return strings.TrimSpace(m.IdempotentID) }

// Notification is the webhook body PrimePag posts.
type Notification struct {
	NotificationType string  `json:"notification_type"`
	Message          Message `json:"message"`
	MD5              string  `json:"md5"`
}

// ParseNotification decodes body and checks the fields every notification
// must carry.
func ParseNotification(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return n, ErrMalformed
	}
	if n.Message.Reference() == "" || n.Message.Status == "" || n.MD5 == "" {
		return n, ErrMalformed
	}
	return n, nil
}

// Verify checks the notification MAC against secret over the identifiers
// exactly as they were delivered.
func (n Notification) Verify(secret string) bool {
	return VerifySignature(n.Message.ReferenceCode, n.Message.IdempotentID, n.Message.ValueCents, secret, n.MD5)
}

// MapStatus translates a provider status into the local payment status.
func MapStatus(s string) (domain.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "paid", "approved":
		return domain.PaymentPaid, true
	case "canceled", "cancelled":
		return domain.PaymentCancelled, true
	case "expired":
		return domain.PaymentExpired, true
	case "failed", "error", "refused":
		return domain.PaymentFailed, true
	case "pending", "awaiting_payment", "created":
		return domain.PaymentAwaitingPayment, true
	}
	return "", false
}

var providerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a provider timestamp. Zone-less values are taken as
// America/Sao_Paulo wall time when that zone is available, else UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	for _, layout := range providerTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
