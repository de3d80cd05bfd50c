package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// FailureHook is called for every handler that fails during asynchronous dispatch
type FailureHook func(ctx context.Context, event shared.DomainEvent, err error)

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsyncWorkers dispatches events on n background workers once the bus is
// started. Publish then only enqueues; handler failures go to the failure hook.
func WithAsyncWorkers(n int, queueSize int) BusOption {
	return func(b *InMemoryEventBus) {
		b.workers = n
		b.queueSize = queueSize
	}
}

// WithFailureHook sets the hook for asynchronous handler failures
func WithFailureHook(hook FailureHook) BusOption {
	return func(b *InMemoryEventBus) {
		b.onFailure = hook
	}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus delivers domain events to in-process handlers. Without
// async workers, or before Start, Publish dispatches synchronously and
// returns the joined handler errors.
type InMemoryEventBus struct {
	registry  *HandlerRegistry
	logger    *zap.Logger
	onFailure FailureHook
	workers   int
	queueSize int

	mu      sync.RWMutex
	queue   chan envelope
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.queueSize <= 0 {
		b.queueSize = 256
	}
	return b
}

// Publish delivers events to every subscribed handler
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	queue := b.queue
	if queue != nil && b.running.Load() {
		defer b.mu.RUnlock()
		// Handlers outlive the request that raised the event
		detached := context.WithoutCancel(ctx)
		for _, event := range events {
			select {
			case queue <- envelope{ctx: detached, event: event}:
			case <-ctx.Done():
				return fmt.Errorf("enqueue %s: %w", event.EventType(), ctx.Err())
			}
		}
		return nil
	}
	b.mu.RUnlock()

	var errs []error
	for _, event := range events {
		errs = append(errs, b.dispatch(ctx, event)...)
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start launches the async workers, if configured
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running.Load() {
		return nil
	}
	if b.workers > 0 {
		b.queue = make(chan envelope, b.queueSize)
		for i := 0; i < b.workers; i++ {
			b.wg.Add(1)
			go b.work(b.queue)
		}
	}
	b.running.Store(true)
	b.logger.Info("event bus started", zap.Int("workers", b.workers))
	return nil
}

// Stop drains queued events and waits for the workers, or until ctx is done
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running.Load() {
		b.mu.Unlock()
		return nil
	}
	b.running.Store(false)
	if b.queue != nil {
		close(b.queue)
		b.queue = nil
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus stop: %w", ctx.Err())
	}
}

func (b *InMemoryEventBus) work(queue <-chan envelope) {
	defer b.wg.Done()
	for env := range queue {
		for _, err := range b.dispatch(env.ctx, env.event) {
			if b.onFailure != nil {
				b.onFailure(env.ctx, env.event, err)
			}
		}
	}
}

// dispatch runs every handler for the event; one failing handler does not
// stop the others.
func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) []error {
	var errs []error
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("tenant_id", event.TenantID().String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", event.EventType(), r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
