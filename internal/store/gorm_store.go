package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/router-for-me/banlist/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBanStore keeps bans in the SQL database.
type GormBanStore struct {
	db *gorm.DB
}

// NewGormBanStore constructs a GormBanStore.
func NewGormBanStore(db *gorm.DB) *GormBanStore {
	return &GormBanStore{db: db}
}

// List returns all bans ordered by user id.
func (s *GormBanStore) List(ctx context.Context) ([]models.Ban, error) {
	var rows []models.Ban
	if errFind := s.db.WithContext(ctx).Order("user_id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("gorm ban store: list: %w", errFind)
	}
	return rows, nil
}

// Add inserts a ban; an existing row for the same user is left untouched.
func (s *GormBanStore) Add(ctx context.Context, userID int32, reason string) error {
	row := models.Ban{UserID: userID, Reason: reason}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return fmt.Errorf("gorm ban store: add %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBanExists
	}
	return nil
}

// Get returns the ban for userID or nil.
func (s *GormBanStore) Get(ctx context.Context, userID int32) (*models.Ban, error) {
	var row models.Ban
	errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	switch {
	case errFind == nil:
		return &row, nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("gorm ban store: get %d: %w", userID, errFind)
	}
}

// Delete removes the ban for userID.
func (s *GormBanStore) Delete(ctx context.Context, userID int32) error {
	if errDelete := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Ban{}).Error; errDelete != nil {
		return fmt.Errorf("gorm ban store: delete %d: %w", userID, errDelete)
	}
	return nil
}

// WithinTx runs fn inside a database transaction.
func (s *GormBanStore) WithinTx(ctx context.Context, fn func(BanStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormBanStore{db: tx})
	})
}
