package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook processing outcomes.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

// WebhookEvent is the audit record of one provider delivery, kept whether or
// not the delivery changed any payment.
type WebhookEvent struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	Provider         string         `json:"provider"          gorm:"type:varchar(32);not null"`
	NotificationType string         `json:"notification_type" gorm:"type:varchar(64)"`
	ReferenceCode    string         `json:"reference_code"    gorm:"type:varchar(128);index"`
	IdempotentID     string         `json:"idempotent_id"     gorm:"type:varchar(128)"`
	Status           string         `json:"status"            gorm:"type:varchar(32)"`
	Payload          datatypes.JSON `json:"payload"`
	SignatureValid   bool           `json:"signature_valid"   gorm:"not null"`
	Result           string         `json:"result"            gorm:"type:varchar(16);not null;index"`
	Error            *string        `json:"error,omitempty"   gorm:"type:text"`
	ReceivedAt       time.Time      `json:"received_at"       gorm:"index"`
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }
