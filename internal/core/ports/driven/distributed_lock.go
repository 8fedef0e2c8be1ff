package driven

import (
	"context"
	"time"
)

// DistributedLock serializes work across API instances: one in-flight
// question per user, and one usage janitor per deployment.
type DistributedLock interface {
	// Acquire takes the named lock for ttl. It reports false, without error,
	// when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the named lock. A lock that is not held or has expired is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes out the expiry of a lock this instance holds.
	// Backends without expiry (PostgreSQL advisory locks) treat it as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks the lock backend
	Ping(ctx context.Context) error
}
