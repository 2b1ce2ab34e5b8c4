package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCredentialStateCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCredentialStateCacheStore(client redis.UniversalClient, prefix string) *RedisCredentialStateCacheStore {
	if prefix == "" {
		prefix = "credstate"
	}
	return &RedisCredentialStateCacheStore{client: client, prefix: prefix}
}

func (s *RedisCredentialStateCacheStore) Get(ctx context.Context, userID uint) (CredentialState, bool, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return CredentialState{}, false, nil
	}
	if err != nil {
		return CredentialState{}, false, err
	}
	var state CredentialState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt entry behaves like a miss and gets rewritten.
		return CredentialState{}, false, nil
	}
	return state, true, nil
}

func (s *RedisCredentialStateCacheStore) Set(ctx context.Context, userID uint, state CredentialState, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), raw, ttl).Err()
}

func (s *RedisCredentialStateCacheStore) Invalidate(ctx context.Context, userID uint) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *RedisCredentialStateCacheStore) key(userID uint) string {
	return fmt.Sprintf("%s:user:%d", s.prefix, userID)
}
