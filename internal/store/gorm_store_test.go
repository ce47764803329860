package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/banlist/internal/models"
	"gorm.io/gorm"
)

func openGormStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:gorm_store_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Ban{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func TestGormBanStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewGormBanStore(openGormStoreTestDB(t))

	if err := s.Add(ctx, 42, "spam"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(ctx, 7, "abuse"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ban, err := s.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ban == nil || ban.UserID != 42 || ban.Reason != "spam" {
		t.Fatalf("unexpected ban %+v", ban)
	}

	bans, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(bans) != 2 || bans[0].UserID != 7 || bans[1].UserID != 42 {
		t.Fatalf("expected bans ordered by id, got %+v", bans)
	}

	if err := s.Delete(ctx, 42); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ban, err = s.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if ban != nil {
		t.Fatalf("expected nil after delete, got %+v", ban)
	}
}

func TestGormBanStoreGetMissingReturnsNil(t *testing.T) {
	s := NewGormBanStore(openGormStoreTestDB(t))

	ban, err := s.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ban != nil {
		t.Fatalf("expected nil, got %+v", ban)
	}
}

func TestGormBanStoreRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewGormBanStore(openGormStoreTestDB(t))

	if err := s.Add(ctx, 5, "first"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(ctx, 5, "second"); !errors.Is(err, ErrBanExists) {
		t.Fatalf("expected ErrBanExists, got %v", err)
	}

	ban, _ := s.Get(ctx, 5)
	if ban == nil || ban.Reason != "first" {
		t.Fatalf("expected original reason kept, got %+v", ban)
	}
}

func TestGormBanStoreAcceptsZeroAndNegativeIDs(t *testing.T) {
	ctx := context.Background()
	s := NewGormBanStore(openGormStoreTestDB(t))

	for _, id := range []int32{0, -3} {
		if err := s.Add(ctx, id, "edge"); err != nil {
			t.Fatalf("Add(%d) error = %v", id, err)
		}
		ban, err := s.Get(ctx, id)
		if err != nil || ban == nil || ban.UserID != id {
			t.Fatalf("Get(%d) = %+v, %v", id, ban, err)
		}
	}
}

func TestGormBanStoreWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewGormBanStore(openGormStoreTestDB(t))
	if err := s.Add(ctx, 2, "existing"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	err := s.WithinTx(ctx, func(tx BanStore) error {
		if errAdd := tx.Add(ctx, 1, "one"); errAdd != nil {
			return errAdd
		}
		return tx.Add(ctx, 2, "duplicate")
	})
	if !errors.Is(err, ErrBanExists) {
		t.Fatalf("expected ErrBanExists from tx, got %v", err)
	}

	bans, errList := s.List(ctx)
	if errList != nil {
		t.Fatalf("List() error = %v", errList)
	}
	if len(bans) != 1 || bans[0].UserID != 2 {
		t.Fatalf("expected rollback to leave only the existing ban, got %+v", bans)
	}
}

func TestGormBanStoreWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewGormBanStore(openGormStoreTestDB(t))

	err := s.WithinTx(ctx, func(tx BanStore) error {
		for _, id := range []int32{3, 1, 2} {
			if errAdd := tx.Add(ctx, id, "batch"); errAdd != nil {
				return errAdd
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}

	bans, _ := s.List(ctx)
	if len(bans) != 3 {
		t.Fatalf("expected 3 bans, got %d", len(bans))
	}
}
