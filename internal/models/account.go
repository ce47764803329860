package models

import "time"

// Account is a login principal that can obtain signed tokens.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active  bool `gorm:"not null;default:true"`  // Whether the account can sign in.
	IsAdmin bool `gorm:"not null;default:false"` // Grants ban management.

	LastLoginAt *time.Time // Last successful login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
