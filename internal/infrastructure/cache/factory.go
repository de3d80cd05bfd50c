package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// inMemoryCleanupInterval is how often the fallback store sweeps expired keys
const inMemoryCleanupInterval = 5 * time.Minute

// NewIdempotencyStore connects to Redis. When Redis is unreachable and
// allowFallback is set, an in-memory store is returned instead; duplicate
// suppression then only holds within one process.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, allowFallback bool, logger *zap.Logger) (shared.IdempotencyStore, error) {
	client, err := NewRedisClient(ctx, cfg)
	if err == nil {
		logger.Info("using Redis idempotency store", zap.String("addr", cfg.Addr()))
		return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
	}
	if !allowFallback {
		return nil, fmt.Errorf("redis required for idempotency: %w", err)
	}

	logger.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
	return NewInMemoryIdempotencyStore(inMemoryCleanupInterval), nil
}
