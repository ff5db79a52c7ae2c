package domain

import "time"

// Photo is purchasable digital content. The image itself lives in external
// storage; only its URL is kept here.
type Photo struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Title        string    `json:"title"         gorm:"type:varchar(255);not null"`
	ImageURL     string    `json:"image_url"     gorm:"type:text;not null"`
	PriceCents   int64     `json:"price_cents"   gorm:"not null;check:price_cents > 0"`
	Active       bool      `json:"active"        gorm:"not null;default:true;index"`
	Purchases    int64     `json:"purchases"     gorm:"not null;default:0"`
	RevenueCents int64     `json:"revenue_cents" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Photo.
func (Photo) TableName() string { return "photos" }

// PhotoPurchase records that a user owns a photo. The (photo_id, user_id)
// unique index makes ownership a grow-only set with no duplicates.
type PhotoPurchase struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	PhotoID    string    `json:"photo_id"    gorm:"type:char(36);not null;uniqueIndex:ux_photo_purchases_photo_user,priority:1"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_photo_purchases_photo_user,priority:2;index"`
	PriceCents int64     `json:"price_cents" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`

	Photo Photo `json:"-" gorm:"foreignKey:PhotoID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PhotoPurchase.
func (PhotoPurchase) TableName() string { return "photo_purchases" }
