package billing

import (
	"context"

	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditHandler writes an audit record for every audited event. A failed
// write is logged and counted; it never fails the operation that raised the
// event.
type AuditHandler struct {
	repo    billing.AuditLogRepository
	metrics Metrics
	logger  *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(repo billing.AuditLogRepository, metrics Metrics, logger *zap.Logger) *AuditHandler {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &AuditHandler{repo: repo, metrics: metrics, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditHandler) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceUpdated,
		billing.EventTypeInvoiceStatusChanged,
		billing.EventTypeInvoiceDeleted,
		billing.EventTypePaymentRecorded,
		billing.EventTypePaymentDeleted,
		billing.EventTypeClientCreated,
		billing.EventTypeClientUpdated,
		billing.EventTypeClientDeleted,
	}
}

// Handle stores the audit record for an event
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	audited, ok := event.(billing.AuditedEvent)
	if !ok {
		return nil
	}

	entry, err := billing.NewAuditEntry(audited)
	if err == nil {
		err = h.repo.Create(ctx, &entry)
	}
	if err != nil {
		h.metrics.RecordSideChannelFailure(ctx, ChannelAudit)
		h.logger.Error("failed to write audit record",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.Error(err),
		)
	}
	return nil
}
