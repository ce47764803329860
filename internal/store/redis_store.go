package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/banlist/internal/models"
)

const bansKey = "bans"

// maxTxRetries bounds optimistic WATCH retries in WithinTx.
const maxTxRetries = 5

// RedisBanStore keeps bans in one Redis hash, field = user id, value = JSON record.
type RedisBanStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// RedisBanStoreOption customises a RedisBanStore.
type RedisBanStoreOption func(*RedisBanStore)

// WithKeyPrefix namespaces the hash key.
func WithKeyPrefix(prefix string) RedisBanStoreOption {
	return func(s *RedisBanStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisBanStore constructs a RedisBanStore.
func NewRedisBanStore(client redis.UniversalClient, opts ...RedisBanStoreOption) *RedisBanStore {
	s := &RedisBanStore{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type redisBanRecord struct {
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *RedisBanStore) key() string { return s.keyPrefix + bansKey }

func field(userID int32) string { return strconv.FormatInt(int64(userID), 10) }

// List returns all bans ordered by user id.
func (s *RedisBanStore) List(ctx context.Context) ([]models.Ban, error) {
	values, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ban store: list: %w", err)
	}
	out := make([]models.Ban, 0, len(values))
	for rawID, rawRecord := range values {
		ban, errDecode := decodeBan(rawID, rawRecord)
		if errDecode != nil {
			return nil, errDecode
		}
		out = append(out, ban)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Add inserts a ban with HSETNX.
func (s *RedisBanStore) Add(ctx context.Context, userID int32, reason string) error {
	payload, err := s.encode(reason)
	if err != nil {
		return err
	}
	created, err := s.client.HSetNX(ctx, s.key(), field(userID), payload).Result()
	if err != nil {
		return fmt.Errorf("redis ban store: add %d: %w", userID, err)
	}
	if !created {
		return ErrBanExists
	}
	return nil
}

// Get returns the ban for userID or nil.
func (s *RedisBanStore) Get(ctx context.Context, userID int32) (*models.Ban, error) {
	raw, err := s.client.HGet(ctx, s.key(), field(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis ban store: get %d: %w", userID, err)
	}
	ban, err := decodeBan(field(userID), raw)
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

// Delete removes the ban for userID.
func (s *RedisBanStore) Delete(ctx context.Context, userID int32) error {
	if err := s.client.HDel(ctx, s.key(), field(userID)).Err(); err != nil {
		return fmt.Errorf("redis ban store: delete %d: %w", userID, err)
	}
	return nil
}

// WithinTx stages writes, then applies them in one MULTI/EXEC guarded by WATCH.
// Reads inside fn see committed data plus the staged adds.
func (s *RedisBanStore) WithinTx(ctx context.Context, fn func(BanStore) error) error {
	key := s.key()
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		staged := &stagedRedisBanStore{parent: s, adds: map[int32]string{}}
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			staged.reader = tx
			if errFn := fn(staged); errFn != nil {
				return errFn
			}
			if len(staged.order) == 0 && len(staged.deletes) == 0 {
				return nil
			}
			_, errExec := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, userID := range staged.order {
					payload, errEncode := s.encode(staged.adds[userID])
					if errEncode != nil {
						return errEncode
					}
					pipe.HSet(ctx, key, field(userID), payload)
				}
				for _, userID := range staged.deletes {
					pipe.HDel(ctx, key, field(userID))
				}
				return nil
			})
			return errExec
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis ban store: transaction retries exhausted")
}

func (s *RedisBanStore) encode(reason string) (string, error) {
	payload, err := json.Marshal(redisBanRecord{Reason: reason, CreatedAt: s.now()})
	if err != nil {
		return "", fmt.Errorf("redis ban store: encode: %w", err)
	}
	return string(payload), nil
}

func decodeBan(rawID, rawRecord string) (models.Ban, error) {
	id, err := strconv.ParseInt(rawID, 10, 32)
	if err != nil {
		return models.Ban{}, fmt.Errorf("redis ban store: bad field %q: %w", rawID, err)
	}
	var record redisBanRecord
	if errUnmarshal := json.Unmarshal([]byte(rawRecord), &record); errUnmarshal != nil {
		return models.Ban{}, fmt.Errorf("redis ban store: decode %d: %w", id, errUnmarshal)
	}
	return models.Ban{UserID: int32(id), Reason: record.Reason, CreatedAt: record.CreatedAt}, nil
}

// hashReader is the read side of a WATCHed connection.
type hashReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// stagedRedisBanStore buffers writes for RedisBanStore.WithinTx.
type stagedRedisBanStore struct {
	parent  *RedisBanStore
	reader  hashReader
	adds    map[int32]string
	order   []int32
	deletes []int32
}

func (s *stagedRedisBanStore) List(ctx context.Context) ([]models.Ban, error) {
	committed, err := s.parent.List(ctx)
	if err != nil {
		return nil, err
	}
	deleted := make(map[int32]struct{}, len(s.deletes))
	for _, id := range s.deletes {
		deleted[id] = struct{}{}
	}
	out := committed[:0]
	for _, ban := range committed {
		if _, gone := deleted[ban.UserID]; gone {
			continue
		}
		if _, restaged := s.adds[ban.UserID]; restaged {
			continue
		}
		out = append(out, ban)
	}
	for _, id := range s.order {
		out = append(out, models.Ban{UserID: id, Reason: s.adds[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *stagedRedisBanStore) Add(ctx context.Context, userID int32, reason string) error {
	if _, ok := s.adds[userID]; ok {
		return ErrBanExists
	}
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrBanExists
	}
	for i, id := range s.deletes {
		if id == userID {
			s.deletes = append(s.deletes[:i], s.deletes[i+1:]...)
			break
		}
	}
	s.adds[userID] = reason
	s.order = append(s.order, userID)
	return nil
}

func (s *stagedRedisBanStore) Get(ctx context.Context, userID int32) (*models.Ban, error) {
	if reason, ok := s.adds[userID]; ok {
		return &models.Ban{UserID: userID, Reason: reason}, nil
	}
	for _, id := range s.deletes {
		if id == userID {
			return nil, nil
		}
	}
	raw, err := s.reader.HGet(ctx, s.parent.key(), field(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis ban store: get %d: %w", userID, err)
	}
	ban, err := decodeBan(field(userID), raw)
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

func (s *stagedRedisBanStore) Delete(_ context.Context, userID int32) error {
	if _, ok := s.adds[userID]; ok {
		delete(s.adds, userID)
		for i, id := range s.order {
			if id == userID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	// The id may also be committed; HDEL of a missing field is a no-op.
	for _, id := range s.deletes {
		if id == userID {
			return nil
		}
	}
	s.deletes = append(s.deletes, userID)
	return nil
}
