package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"idwallet/internal/auth/models"
	"idwallet/pkg/platform/sentinel"
)

const sessionKeyPrefix = "idwallet:session:"

// RedisSessionStore keeps sessions in Redis with a TTL matching their
// expiry, so Redis evicts what the sweeper would. Deployment option for
// running several instances behind one session table; the manager's
// semantics do not change.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, session models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set session: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisSessionStore) FindByID(ctx context.Context, id uuid.UUID) (models.Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: get session: %v", sentinel.ErrUnavailable, err)
	}
	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return models.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis TTLs already evict expired sessions.
func (s *RedisSessionStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// Count walks the session keyspace with SCAN. The result is a snapshot,
// which is all a gauge needs.
func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: scan sessions: %v", sentinel.ErrUnavailable, err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
