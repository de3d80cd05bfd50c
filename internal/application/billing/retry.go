package billing

import (
	"context"

	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// conflictRetries is how many times a financial mutation is re-run after a
// ConflictError. Each attempt opens a fresh transaction and re-reads state.
const conflictRetries = 1

// withConflictRetry runs op and repeats it while it fails with a conflict,
// up to conflictRetries extra attempts. Other errors return immediately.
func withConflictRetry(ctx context.Context, logger *zap.Logger, operation string, op func() error) error {
	var err error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		err = op()
		if err == nil || !shared.IsConflict(err) {
			return err
		}
		if attempt == conflictRetries || ctx.Err() != nil {
			break
		}
		logger.Info("retrying after concurrent modification",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return err
}
