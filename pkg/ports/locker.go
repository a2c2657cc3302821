package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on a key (a conversation ID) across replicas.
type DistributedLocker interface {
	// Lock blocks until the key is acquired or ctx is done.
	// The lock expires after ttl even if UnlockFunc is never called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
