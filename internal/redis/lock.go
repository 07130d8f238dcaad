package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 25 * time.Millisecond

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed per-order locking in Redis.
type LockStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLockStore creates a new LockStore. ttl bounds how long a crashed holder blocks an order.
func NewLockStore(client *redis.Client, ttl time.Duration) *LockStore {
	return &LockStore{client: client, ttl: ttl}
}

// AcquireOrderLock attempts to acquire the lock for the given order once.
// Returns the holder token, or "" if the lock is already held.
func (s *LockStore) AcquireOrderLock(ctx context.Context, orderID string) (string, error) {
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, orderLockKey(orderID), token, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	return token, nil
}

// ReleaseOrderLock releases the lock if token still owns it.
func (s *LockStore) ReleaseOrderLock(ctx context.Context, orderID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{orderLockKey(orderID)}, token).Err()
}

// Lock blocks until the order lock is held or ctx is done.
func (s *LockStore) Lock(ctx context.Context, orderID string) (func(), error) {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		token, err := s.AcquireOrderLock(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("acquire order lock: %w", err)
		}
		if token != "" {
			return func() {
				// Release with a fresh context so a cancelled request still frees the lock.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = s.ReleaseOrderLock(releaseCtx, orderID, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func orderLockKey(orderID string) string {
	return fmt.Sprintf("lock:order:%s", orderID)
}
