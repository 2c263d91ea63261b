package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/om239903-ai/internship-project/internal/core"
)

const (
	cancelFlagKeyPrefix = "dealscan:cancel:"
	// DefaultCancelFlagTTL outlives any realistic run; the durable flag in Postgres remains authoritative.
	DefaultCancelFlagTTL = 24 * time.Hour
)

// RedisCancelStore mirrors cancel requests into Redis so running engines observe them without a
// database round trip per checkpoint.
type RedisCancelStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCancelStore creates a store. A non-positive ttl selects DefaultCancelFlagTTL.
func NewRedisCancelStore(client redis.UniversalClient, ttl time.Duration) *RedisCancelStore {
	if ttl <= 0 {
		ttl = DefaultCancelFlagTTL
	}
	return &RedisCancelStore{client: client, ttl: ttl}
}

func cancelFlagKey(scanJobID string) string {
	return cancelFlagKeyPrefix + scanJobID
}

// SetCancelFlag raises the flag for scanJobID.
func (s *RedisCancelStore) SetCancelFlag(ctx context.Context, scanJobID string) error {
	if s.client == nil {
		return ErrRedisNotAvailable
	}
	if scanJobID == "" {
		return errors.New("scan job id cannot be empty")
	}
	if err := s.client.Set(ctx, cancelFlagKey(scanJobID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cancel flag: %w", err)
	}
	return nil
}

// IsCancelFlagSet reports whether the flag is present.
func (s *RedisCancelStore) IsCancelFlagSet(ctx context.Context, scanJobID string) (bool, error) {
	if s.client == nil {
		return false, ErrRedisNotAvailable
	}
	n, err := s.client.Exists(ctx, cancelFlagKey(scanJobID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists cancel flag: %w", err)
	}
	return n > 0, nil
}

// ClearCancelFlag removes the flag once the job reached a terminal status.
func (s *RedisCancelStore) ClearCancelFlag(ctx context.Context, scanJobID string) error {
	if s.client == nil {
		return ErrRedisNotAvailable
	}
	if err := s.client.Del(ctx, cancelFlagKey(scanJobID)).Err(); err != nil {
		return fmt.Errorf("redis del cancel flag: %w", err)
	}
	return nil
}

var _ core.CancelFlagStore = (*RedisCancelStore)(nil)
