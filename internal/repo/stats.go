package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
)

// StatusTotal is a per-status aggregate.
type StatusTotal struct {
	Status     string
	Count      int64
	TotalCents int64
}

// WithdrawalStats returns the count and summed amount per withdrawal status.
// Statuses with no rows are omitted.
func WithdrawalStats(ctx context.Context, db *gorm.DB) ([]StatusTotal, error) {
	var out []StatusTotal
	err := db.WithContext(ctx).
		Model(&domain.Withdrawal{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS total_cents").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}

// PaymentStats returns the count and summed amount per payment status.
func PaymentStats(ctx context.Context, db *gorm.DB) ([]StatusTotal, error) {
	var out []StatusTotal
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS total_cents").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}
