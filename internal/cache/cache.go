// Package cache provides the read-through cache used for derived attempt
// reads. The store stays authoritative: every correctness property must hold
// with this layer absent, so backends are swappable behind one interface and
// failures are tolerable.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get unmarshals the cached value into dest and reports whether the key
	// was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every key under a prefix. Parameterized list
	// keys (filters, pagination) are invalidated this way.
	DeleteByPrefix(ctx context.Context, prefix string) error
}
