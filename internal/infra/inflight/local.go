package inflight

import (
	"context"
	"sync"
	"time"
)

// LocalLocker keeps markers in process memory. It only protects a single
// instance and is used when no redis is configured.
type LocalLocker struct {
	mu      sync.Mutex
	held    map[string]localEntry
	now     func() time.Time
	counter uint64
}

type localEntry struct {
	id        uint64
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, ErrInFlight
	}

	l.counter++
	id := l.counter
	l.held[key] = localEntry{id: id, expiresAt: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if e, ok := l.held[key]; ok && e.id == id {
				delete(l.held, key)
			}
		})
	}, nil
}

// Ping always succeeds.
func (l *LocalLocker) Ping(context.Context) error { return nil }
