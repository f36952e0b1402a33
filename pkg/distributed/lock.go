// Package distributed holds coordination helpers for running several site
// instances against one Redis.
package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held by this holder")

// unlockScript deletes the key only when it still carries our token
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only when the key still carries our token
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Lock is a Redis SET NX lease renewed at half its TTL while held.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration

	mu      sync.Mutex
	stopped chan struct{}
}

// NewLock creates a lock on key. ttl bounds how long a crashed holder blocks others.
func NewLock(client redis.UniversalClient, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		token:  newToken(),
		ttl:    ttl,
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Key returns the Redis key backing the lock
func (l *Lock) Key() string {
	return l.key
}

// TryLock acquires the lock without waiting. It reports false when another
// holder has it.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}

	l.mu.Lock()
	l.stopped = make(chan struct{})
	stop := l.stopped
	l.mu.Unlock()

	go l.renew(stop)
	return true, nil
}

// Unlock releases the lock if this holder still owns it
func (l *Lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped != nil {
		close(l.stopped)
		l.stopped = nil
	}
	l.mu.Unlock()

	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *Lock) renew(stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || n == 0 {
				return
			}
		}
	}
}

// WithLock runs fn while holding the lock. ran is false when the lock was busy.
func WithLock(ctx context.Context, l *Lock, fn func(ctx context.Context) error) (ran bool, err error) {
	ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		if uerr := l.Unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil && !errors.Is(uerr, ErrNotHeld) {
			err = uerr
		}
	}()
	return true, fn(ctx)
}
