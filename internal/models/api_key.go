package models

import "time"

// APIKey represents a static bearer key issued to an operator or integration.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name   string `gorm:"type:text;not null"`             // Display name for the key.
	APIKey string `gorm:"type:text;not null;uniqueIndex"` // Full API key string.

	IsAdmin bool `gorm:"not null;default:false"` // Grants ban management.

	Active     bool       `gorm:"not null;default:true"` // Whether the key is enabled.
	ExpiresAt  *time.Time // Optional expiration timestamp.
	RevokedAt  *time.Time // Revocation timestamp when disabled.
	LastUsedAt *time.Time // Last successful usage time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// API key statuses reported by Status.
const (
	APIKeyStatusActive   = "active"
	APIKeyStatusInactive = "inactive"
	APIKeyStatusExpired  = "expired"
	APIKeyStatusRevoked  = "revoked"
)

// Status returns the key status at now based on revocation, expiry, and the active flag.
func (k *APIKey) Status(now time.Time) string {
	if k.RevokedAt != nil {
		return APIKeyStatusRevoked
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return APIKeyStatusExpired
	}
	if k.Active {
		return APIKeyStatusActive
	}
	return APIKeyStatusInactive
}

// Usable reports whether the key may authenticate requests at now.
func (k *APIKey) Usable(now time.Time) bool {
	return k.Status(now) == APIKeyStatusActive
}
