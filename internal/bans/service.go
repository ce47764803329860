package bans

import (
	"context"
	"errors"
	"strconv"

	"github.com/router-for-me/banlist/internal/access"
	"github.com/router-for-me/banlist/internal/models"
	"github.com/router-for-me/banlist/internal/store"
	log "github.com/sirupsen/logrus"
)

// CreateBan is one entry of a CreateBans batch. Pointers distinguish missing fields.
type CreateBan struct {
	ID     *int32  `json:"id"`
	Reason *string `json:"reason"`
}

// Options holds policy switches for Service.
type Options struct {
	// RequireAdminForGet applies the admin check to GetBan as well.
	RequireAdminForGet bool
}

// Service gates ban operations behind token resolution.
type Service struct {
	resolver access.Resolver
	store    store.BanStore
	opts     Options
}

// NewService constructs a Service.
func NewService(resolver access.Resolver, banStore store.BanStore, opts Options) *Service {
	return &Service{resolver: resolver, store: banStore, opts: opts}
}

// ListBans returns every ban. Admin only.
func (s *Service) ListBans(ctx context.Context, token string) ([]models.Ban, error) {
	if _, err := s.authorize(ctx, token, true); err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, newError(KindInternal, "list bans failed", err)
	}
	if rows == nil {
		rows = []models.Ban{}
	}
	return rows, nil
}

// CreateBans adds every entry in order. Admin only.
//
// The batch runs in one transaction when the store supports it, so a failure
// leaves no entry behind. An id that is already banned, or repeated within the
// batch, fails the whole call with KindConflict.
func (s *Service) CreateBans(ctx context.Context, token string, batch []CreateBan) error {
	perms, err := s.authorize(ctx, token, true)
	if err != nil {
		return err
	}
	for i, entry := range batch {
		if entry.ID == nil {
			return newError(KindBadRequest, "entry "+strconv.Itoa(i)+": missing id", nil)
		}
		if entry.Reason == nil {
			return newError(KindBadRequest, "entry "+strconv.Itoa(i)+": missing reason", nil)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	apply := func(st store.BanStore) error {
		for _, entry := range batch {
			if err := st.Add(ctx, *entry.ID, *entry.Reason); err != nil {
				return err
			}
		}
		return nil
	}

	if txStore, ok := s.store.(store.TxStore); ok {
		err = txStore.WithinTx(ctx, apply)
	} else {
		err = apply(s.store)
	}
	switch {
	case err == nil:
		log.WithFields(log.Fields{"principal": perms.Principal(), "count": len(batch)}).Info("bans created")
		return nil
	case errors.Is(err, store.ErrBanExists):
		return newError(KindConflict, "ban already exists", err)
	default:
		return newError(KindInternal, "create bans failed", err)
	}
}

// GetBan returns the ban for rawID. Any resolvable token may read unless
// Options.RequireAdminForGet is set. A malformed id is rejected before the
// token is looked at.
func (s *Service) GetBan(ctx context.Context, token string, rawID string) (*models.Ban, error) {
	userID, err := ParseUserID(rawID)
	if err != nil {
		return nil, err
	}
	if _, errAuth := s.authorize(ctx, token, s.opts.RequireAdminForGet); errAuth != nil {
		return nil, errAuth
	}
	ban, errGet := s.store.Get(ctx, userID)
	if errGet != nil {
		return nil, newError(KindInternal, "get ban failed", errGet)
	}
	if ban == nil {
		return nil, newError(KindNotFound, "ban not found", nil)
	}
	return ban, nil
}

// DeleteBan removes the ban for rawID. Admin only; absent bans are KindNotFound.
func (s *Service) DeleteBan(ctx context.Context, token string, rawID string) error {
	perms, err := s.authorize(ctx, token, true)
	if err != nil {
		return err
	}
	userID, err := ParseUserID(rawID)
	if err != nil {
		return err
	}
	ban, errGet := s.store.Get(ctx, userID)
	if errGet != nil {
		return newError(KindInternal, "get ban failed", errGet)
	}
	if ban == nil {
		return newError(KindNotFound, "ban not found", nil)
	}
	if errDelete := s.store.Delete(ctx, userID); errDelete != nil {
		return newError(KindInternal, "delete ban failed", errDelete)
	}
	log.WithFields(log.Fields{"principal": perms.Principal(), "user_id": userID}).Info("ban deleted")
	return nil
}

func (s *Service) authorize(ctx context.Context, token string, requireAdmin bool) (access.Permissions, error) {
	perms, err := s.resolver.Resolve(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, access.ErrNoCredentials):
		return access.Permissions{}, newError(KindUnauthorized, "missing token", err)
	case errors.Is(err, access.ErrInvalidCredential), errors.Is(err, access.ErrNotHandled):
		return access.Permissions{}, newError(KindUnauthorized, "invalid token", err)
	default:
		return access.Permissions{}, newError(KindInternal, "resolve token failed", err)
	}
	if requireAdmin && !perms.IsAdmin() {
		return perms, newError(KindForbidden, "admin permission required", nil)
	}
	return perms, nil
}

// ParseUserID parses a path parameter as a 32-bit user id.
func ParseUserID(raw string) (int32, error) {
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, newError(KindBadRequest, "invalid id", err)
	}
	return int32(id), nil
}
