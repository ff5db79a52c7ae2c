package domain

import "time"

// Well-known configuration keys.
const (
	ConfigMaintenanceMode = "maintenance_mode"
)

// AdminConfig is a key/value setting managed by administrators.
type AdminConfig struct {
	Key         string    `json:"key"         gorm:"type:varchar(128);primaryKey"`
	Value       string    `json:"value"       gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	UpdatedBy   string    `json:"updated_by"  gorm:"type:varchar(64)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for AdminConfig.
func (AdminConfig) TableName() string { return "admin_configs" }
