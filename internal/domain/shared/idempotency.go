package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of work that has already been done.
// Implementations must make MarkProcessed atomic across callers.
type IdempotencyStore interface {
	// MarkProcessed reports true when the key was not yet marked
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig controls duplicate suppression for event handlers
type IdempotencyConfig struct {
	// TTL bounds how long a key stays marked
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps keys for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
