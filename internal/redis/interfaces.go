package redis

import (
	"context"
	"errors"

	"donation/internal/repository"
)

// ErrLockTimeout is returned when an order lock could not be acquired before the context ended.
var ErrLockTimeout = errors.New("order lock not acquired")

// OrderLockStoreInterface defines the interface for distributed order locking.
type OrderLockStoreInterface interface {
	AcquireOrderLock(ctx context.Context, orderID string) (string, error)
	ReleaseOrderLock(ctx context.Context, orderID, token string) error
	Lock(ctx context.Context, orderID string) (func(), error)
}

// Ensure concrete types implement interfaces.
var (
	_ OrderLockStoreInterface      = (*LockStore)(nil)
	_ repository.SessionRepository = (*SessionStore)(nil)
)
