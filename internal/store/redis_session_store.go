package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultSessionTTL = 24 * time.Hour

// RedisSessionStore keeps one JSON value per session. Every write refreshes
// the TTL, so idle sessions expire on their own.
type RedisSessionStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration, keyPrefix string) (*RedisSessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "passportflow:session"
	}
	return &RedisSessionStore{client: client, ttl: ttl, keyPrefix: keyPrefix}, nil
}

func (s *RedisSessionStore) key(id string) string {
	return s.keyPrefix + ":" + id
}

func (s *RedisSessionStore) Create(ctx context.Context, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(state.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, state.ID)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (domain.SessionState, bool, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("get session: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("unmarshal session: %w", err)
	}
	return state, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.key(state.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", state.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
