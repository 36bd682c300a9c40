package inflight

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	client, err := Connect(context.Background(), url, 1, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "test:"+uuid.NewString()+":", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRedisLocker(t *testing.T) {
	l := redisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "payment:a@example.com", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "payment:a@example.com", time.Minute)
	assert.ErrorIs(t, err, ErrInFlight)

	release()
	again, err := l.Acquire(ctx, "payment:a@example.com", time.Minute)
	require.NoError(t, err)
	again()
	assert.NoError(t, l.Ping(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	l := redisLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	fresh, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	defer fresh()

	stale()
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "not-a-url://", 1, time.Millisecond)
	assert.ErrorIs(t, err, ErrFailedToParseRedisURL)
}
