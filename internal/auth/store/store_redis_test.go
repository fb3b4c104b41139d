package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idwallet/pkg/platform/sentinel"
)

// An unreachable Redis must surface as ErrUnavailable so the service layer
// reports a persistence failure, never a not-found or a silent logout.
func TestRedisSessionStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	sessions := NewRedisSessionStore(client)
	ctx := context.Background()

	session := makeSession(uuid.New(), time.Hour)
	err := sessions.Save(ctx, session)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	_, err = sessions.FindByID(ctx, session.ID)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	assert.ErrorIs(t, sessions.Delete(ctx, session.ID), sentinel.ErrUnavailable)

	_, err = sessions.Count(ctx)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

// A session already past its expiry has no representable TTL; Save refuses
// it before touching Redis.
func TestRedisSessionStoreRefusesExpiredSave(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	sessions := NewRedisSessionStore(client)

	err := sessions.Save(context.Background(), makeSession(uuid.New(), -time.Minute))
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}
