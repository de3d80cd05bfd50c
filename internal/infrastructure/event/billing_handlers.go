package event

import (
	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NamedHandler pairs an event handler with the name used for its idempotency keys
type NamedHandler struct {
	Name    string
	Handler shared.EventHandler
}

// SubscribeIdempotent wraps each handler with an IdempotentHandler on the
// shared store and subscribes it to its own event types.
func SubscribeIdempotent(bus shared.EventSubscriber, store shared.IdempotencyStore, config shared.IdempotencyConfig, logger *zap.Logger, handlers ...NamedHandler) []*IdempotentHandler {
	wrapped := make([]*IdempotentHandler, 0, len(handlers))
	for _, nh := range handlers {
		h := NewIdempotentHandler(nh.Name, nh.Handler, store, config, logger.Named(nh.Name))
		bus.Subscribe(h)
		wrapped = append(wrapped, h)
	}
	return wrapped
}
