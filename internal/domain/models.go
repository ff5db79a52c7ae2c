// Package domain defines the persistence models for users, PIX payments,
// wallet ledger entries, withdrawals, photo content, admin configuration and
// webhook audit records. These types are mapped with GORM and form the core
// data layer of the panel.
//
// Money is always stored as integer centavos (*Cents fields). Conversion to
// decimal reais happens only at the HTTP edge.
package domain

import "time"

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account provisioned by the external auth service. This service
// only reads it and adjusts BalanceCents through the wallet ledger.
//
// Fields:
//   - ID: identifier carried in the auth token (userId claim).
//   - Role: "user" or "admin".
//   - BalanceCents: spendable wallet balance, never negative.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           string    `json:"id"            gorm:"type:varchar(64);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(255)"`
	Email        string    `json:"email"         gorm:"type:varchar(255);index"`
	Role         string    `json:"role"          gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`
	BalanceCents int64     `json:"balance_cents" gorm:"not null;default:0;check:balance_cents >= 0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
