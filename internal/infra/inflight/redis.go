package inflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrFailedToParseRedisURL = errors.New("inflight: failed to parse redis url")
	ErrRedisNotReady         = errors.New("inflight: redis is not ready")
)

// releaseScript deletes the key only while it still holds our token, so an
// expired marker re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const releaseTimeout = 5 * time.Second

// Connect parses url and pings the server, retrying until attempts run out
// or ctx is done.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}
	if attempts < 1 {
		attempts = 1
	}

	for range attempts {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrRedisNotReady
}

// RedisLocker holds markers as SET NX PX keys so every API instance sees them.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, prefix string, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{client: client, prefix: prefix, log: log.With("component", "inflight")}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	key = l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("inflight: set %s: %w", key, err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.WarnContext(ctx, "release in-flight marker", "key", key, "error", err)
		}
	}, nil
}

// Ping reports whether redis is reachable.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
