package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
)

// WithdrawalFilter narrows withdrawal listings. Empty fields match all.
type WithdrawalFilter struct {
	UserID string
	Status domain.WithdrawalStatus
}

func (f WithdrawalFilter) apply(q *gorm.DB) *gorm.DB {
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	return q
}

// CreateWithdrawal inserts w.
func CreateWithdrawal(ctx context.Context, db *gorm.DB, w *domain.Withdrawal) error {
	return db.WithContext(ctx).Create(w).Error
}

// GetWithdrawal fetches a withdrawal by id.
func GetWithdrawal(ctx context.Context, db *gorm.DB, id string) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWithdrawalsPage returns a page of withdrawals, newest first.
func ListWithdrawalsPage(ctx context.Context, db *gorm.DB, f WithdrawalFilter, offset, limit int) ([]domain.Withdrawal, error) {
	var out []domain.Withdrawal
	err := f.apply(db.WithContext(ctx)).
		Order("requested_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountWithdrawals returns how many withdrawals match f.
func CountWithdrawals(ctx context.Context, db *gorm.DB, f WithdrawalFilter) (int64, error) {
	var n int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Withdrawal{})).Count(&n).Error
	return n, err
}

// MoveWithdrawal moves withdrawal id into status to if it currently sits in
// a state that may reach to. Extra columns (reviewer, notes, timestamps) are
// written by the same statement. It reports whether this call performed the
// move.
func MoveWithdrawal(ctx context.Context, db *gorm.DB, id string, to domain.WithdrawalStatus, at time.Time, extra map[string]any) (bool, error) {
	sources := domain.WithdrawalSources(to)
	if len(sources) == 0 {
		return false, nil
	}
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}
	updates := map[string]any{"status": string(to), "updated_at": at}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Withdrawal{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
