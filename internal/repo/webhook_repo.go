package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
)

// CreateWebhookEvent appends an audit record for a provider delivery.
func CreateWebhookEvent(ctx context.Context, db *gorm.DB, ev *domain.WebhookEvent) error {
	return db.WithContext(ctx).Create(ev).Error
}

// ListWebhookEventsPage returns a page of deliveries, newest first. An empty
// reference matches all.
func ListWebhookEventsPage(ctx context.Context, db *gorm.DB, reference string, offset, limit int) ([]domain.WebhookEvent, error) {
	q := db.WithContext(ctx)
	if reference != "" {
		q = q.Where("reference_code = ?", reference)
	}
	var out []domain.WebhookEvent
	err := q.Order("received_at desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// CountWebhookEvents returns how many deliveries match reference.
func CountWebhookEvents(ctx context.Context, db *gorm.DB, reference string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.WebhookEvent{})
	if reference != "" {
		q = q.Where("reference_code = ?", reference)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
