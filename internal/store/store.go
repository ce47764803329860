package store

import (
	"context"
	"errors"

	"github.com/router-for-me/banlist/internal/models"
)

// ErrBanExists is returned by Add when the user already has a ban record.
var ErrBanExists = errors.New("ban already exists")

// BanStore persists ban records keyed by user id.
type BanStore interface {
	// List returns every ban ordered by user id.
	List(ctx context.Context) ([]models.Ban, error)
	// Add inserts a ban and returns ErrBanExists when one is already present.
	Add(ctx context.Context, userID int32, reason string) error
	// Get returns the ban for userID, or nil when there is none.
	Get(ctx context.Context, userID int32) (*models.Ban, error)
	// Delete removes the ban for userID if present.
	Delete(ctx context.Context, userID int32) error
}

// TxStore is implemented by stores that can apply several writes atomically.
type TxStore interface {
	BanStore
	// WithinTx runs fn against a transactional view; any error discards every write fn made.
	WithinTx(ctx context.Context, fn func(BanStore) error) error
}
