package models

import "time"

// Ban records that a user is banned and why.
type Ban struct {
	UserID int32  `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"id"` // Banned user identifier.
	Reason string `gorm:"type:text;not null" json:"reason"`                          // Free-text reason.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"-"` // Creation timestamp.
}
