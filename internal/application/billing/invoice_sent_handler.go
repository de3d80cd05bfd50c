package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InvoiceEmailPayload identifies one invoice email delivery. The recipient
// is resolved when the email is sent.
type InvoiceEmailPayload struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	EventID   uuid.UUID `json:"event_id"`
	FirstSend bool      `json:"first_send"`
}

// EmailEnqueuer queues invoice emails for asynchronous delivery
type EmailEnqueuer interface {
	EnqueueInvoiceEmail(ctx context.Context, payload InvoiceEmailPayload) error
}

// InvoiceSentHandler queues the invoice email when an invoice is sent
type InvoiceSentHandler struct {
	enqueuer EmailEnqueuer
	metrics  Metrics
	logger   *zap.Logger
}

// NewInvoiceSentHandler creates a new handler for invoice sent events
func NewInvoiceSentHandler(enqueuer EmailEnqueuer, metrics Metrics, logger *zap.Logger) *InvoiceSentHandler {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &InvoiceSentHandler{enqueuer: enqueuer, metrics: metrics, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *InvoiceSentHandler) EventTypes() []string {
	return []string{billing.EventTypeInvoiceSent}
}

// Handle enqueues the email. Enqueue failures are logged and counted; the
// invoice stays sent.
func (h *InvoiceSentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	sent, ok := event.(*billing.InvoiceSentEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			billing.EventTypeInvoiceSent, event.EventType())
	}

	payload := InvoiceEmailPayload{
		TenantID:  sent.TenantID(),
		InvoiceID: sent.AggregateID(),
		EventID:   sent.EventID(),
		FirstSend: sent.FirstSend,
	}
	if err := h.enqueuer.EnqueueInvoiceEmail(ctx, payload); err != nil {
		h.metrics.RecordSideChannelFailure(ctx, ChannelEmail)
		h.logger.Warn("failed to enqueue invoice email",
			zap.String("tenant_id", payload.TenantID.String()),
			zap.String("invoice_id", payload.InvoiceID.String()),
			zap.String("invoice_number", sent.InvoiceNumber),
			zap.Error(err),
		)
		return nil
	}

	h.logger.Debug("invoice email queued",
		zap.String("invoice_id", payload.InvoiceID.String()),
		zap.Bool("first_send", payload.FirstSend),
	)
	return nil
}
