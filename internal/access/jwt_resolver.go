package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/router-for-me/banlist/internal/models"
	"github.com/router-for-me/banlist/internal/security"
	"gorm.io/gorm"
)

// JWTResolver authenticates account tokens and reloads the account on every call.
type JWTResolver struct {
	db     *gorm.DB
	secret string
}

// NewJWTResolver constructs a JWTResolver.
func NewJWTResolver(db *gorm.DB, secret string) *JWTResolver {
	return &JWTResolver{db: db, secret: secret}
}

// Resolve handles compact JWTs only; other tokens are passed on.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (Permissions, error) {
	if r == nil || r.db == nil || !security.LooksLikeJWT(token) {
		return Permissions{}, ErrNotHandled
	}

	claims, errParse := security.ParseAccountToken(r.secret, token)
	if errParse != nil {
		return Permissions{}, ErrInvalidCredential
	}

	var account models.Account
	errFind := r.db.WithContext(ctx).
		Select("id", "username", "active", "is_admin").
		First(&account, claims.AccountID).Error
	switch {
	case errFind == nil:
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		return Permissions{}, ErrInvalidCredential
	default:
		return Permissions{}, fmt.Errorf("jwt resolver: query failed: %w", errFind)
	}
	if !account.Active {
		return Permissions{}, ErrInvalidCredential
	}

	return NewPermissions("account:"+strconv.FormatUint(account.ID, 10), account.IsAdmin), nil
}
