package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/pix-panel/internal/domain"
)

// GetConfig fetches one setting by key.
func GetConfig(ctx context.Context, db *gorm.DB, key string) (*domain.AdminConfig, error) {
	var c domain.AdminConfig
	if err := db.WithContext(ctx).Where("key = ?", key).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConfigs returns every setting ordered by key.
func ListConfigs(ctx context.Context, db *gorm.DB) ([]domain.AdminConfig, error) {
	var out []domain.AdminConfig
	err := db.WithContext(ctx).Order("key").Find(&out).Error
	return out, err
}

// UpsertConfig inserts or overwrites a setting keyed by c.Key.
func UpsertConfig(ctx context.Context, db *gorm.DB, c *domain.AdminConfig) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_by", "updated_at"}),
	}).Create(c).Error
}
