package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/router-for-me/banlist/internal/models"
	"github.com/router-for-me/banlist/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// APIKeyResolver authenticates static API keys stored in the database.
type APIKeyResolver struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAPIKeyResolver constructs an APIKeyResolver.
func NewAPIKeyResolver(db *gorm.DB) *APIKeyResolver {
	return &APIKeyResolver{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Resolve looks up an active key and reports its admin flag.
func (r *APIKeyResolver) Resolve(ctx context.Context, token string) (Permissions, error) {
	if r == nil || r.db == nil {
		return Permissions{}, ErrNotHandled
	}
	if token == "" {
		return Permissions{}, ErrNoCredentials
	}

	var apiKey models.APIKey
	err := r.db.WithContext(ctx).
		Where("api_key = ?", token).
		First(&apiKey).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.WithField("api_key", security.MaskAPIKey(token)).Debug("api key resolver: unknown key")
		return Permissions{}, ErrInvalidCredential
	default:
		return Permissions{}, fmt.Errorf("api key resolver: query failed: %w", err)
	}

	now := r.now()
	if !apiKey.Usable(now) {
		log.WithFields(log.Fields{"api_key_id": apiKey.ID, "status": apiKey.Status(now)}).Debug("api key resolver: unusable key")
		return Permissions{}, ErrInvalidCredential
	}

	if errTouch := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", apiKey.ID).
		Update("last_used_at", &now).Error; errTouch != nil {
		log.WithError(errTouch).WithField("api_key_id", apiKey.ID).Warn("api key resolver: update last_used_at failed")
	}

	return NewPermissions("key:"+strconv.FormatUint(apiKey.ID, 10), apiKey.IsAdmin), nil
}
