package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
)

// CreatePhoto inserts ph.
func CreatePhoto(ctx context.Context, db *gorm.DB, ph *domain.Photo) error {
	return db.WithContext(ctx).Create(ph).Error
}

// GetPhoto fetches a photo by id.
func GetPhoto(ctx context.Context, db *gorm.DB, id string) (*domain.Photo, error) {
	var ph domain.Photo
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ph).Error; err != nil {
		return nil, err
	}
	return &ph, nil
}

// ListActivePhotos returns every active photo, newest first.
func ListActivePhotos(ctx context.Context, db *gorm.DB) ([]domain.Photo, error) {
	var out []domain.Photo
	err := db.WithContext(ctx).Where("active = ?", true).Order("created_at desc").Find(&out).Error
	return out, err
}

// SetPhotoActive toggles availability. Returns ErrNotFound for unknown ids.
func SetPhotoActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	res := db.WithContext(ctx).Model(&domain.Photo{}).Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePhotoPurchase records ownership. A second purchase of the same photo
// by the same user returns ErrDuplicate.
func CreatePhotoPurchase(ctx context.Context, db *gorm.DB, photoID, userID string, priceCents int64, at time.Time) (*domain.PhotoPurchase, error) {
	pp := &domain.PhotoPurchase{
		ID:         uuid.NewString(),
		PhotoID:    photoID,
		UserID:     userID,
		PriceCents: priceCents,
		CreatedAt:  at,
	}
	if err := db.WithContext(ctx).Omit("Photo").Create(pp).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return pp, nil
}

// RecordPhotoSale increments a photo's purchase counter and revenue.
func RecordPhotoSale(ctx context.Context, db *gorm.DB, photoID string, priceCents int64) error {
	return db.WithContext(ctx).Model(&domain.Photo{}).Where("id = ?", photoID).
		Updates(map[string]any{
			"purchases":     gorm.Expr("purchases + 1"),
			"revenue_cents": gorm.Expr("revenue_cents + ?", priceCents),
		}).Error
}

// PurchasedPhotoIDs returns the ids of every photo userID owns.
func PurchasedPhotoIDs(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.PhotoPurchase{}).
		Where("user_id = ?", userID).
		Pluck("photo_id", &ids).Error
	return ids, err
}

// ListPurchasedPhotos returns the photos userID owns, most recent purchase first.
func ListPurchasedPhotos(ctx context.Context, db *gorm.DB, userID string) ([]domain.Photo, error) {
	var out []domain.Photo
	err := db.WithContext(ctx).
		Joins("JOIN photo_purchases ON photo_purchases.photo_id = photos.id").
		Where("photo_purchases.user_id = ?", userID).
		Order("photo_purchases.created_at desc").
		Find(&out).Error
	return out, err
}

// CountPhotoPurchases returns how many times photoID was bought by userID
// (0 or 1 given the unique index).
func CountPhotoPurchases(ctx context.Context, db *gorm.DB, photoID, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.PhotoPurchase{}).
		Where("photo_id = ? AND user_id = ?", photoID, userID).
		Count(&n).Error
	return n, err
}
