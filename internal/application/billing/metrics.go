package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side channels whose failures are counted but never fail an operation
const (
	ChannelAudit   = "audit"
	ChannelEmail   = "email"
	ChannelPublish = "publish"
)

// Reasons a payment leaves a ledger
const (
	PaymentRemovalManual = "manual"
	PaymentRemovalEdit   = "edit"
	PaymentRemovalCancel = "cancel"
)

// Metrics receives business counters from the billing services.
// telemetry.BusinessMetrics implements it.
type Metrics interface {
	RecordInvoiceCreated(ctx context.Context, tenantID uuid.UUID)
	RecordPaymentRecorded(ctx context.Context, tenantID uuid.UUID, method string, amount decimal.Decimal)
	RecordPaymentsDeleted(ctx context.Context, tenantID uuid.UUID, reason string, count int)
	RecordStatusChange(ctx context.Context, tenantID uuid.UUID, from, to string)
	RecordReconciliationRequired(ctx context.Context, tenantID uuid.UUID)
	RecordSideChannelFailure(ctx context.Context, channel string)
}

type nopMetrics struct{}

func (nopMetrics) RecordInvoiceCreated(context.Context, uuid.UUID)                           {}
func (nopMetrics) RecordPaymentRecorded(context.Context, uuid.UUID, string, decimal.Decimal) {}
func (nopMetrics) RecordPaymentsDeleted(context.Context, uuid.UUID, string, int)             {}
func (nopMetrics) RecordStatusChange(context.Context, uuid.UUID, string, string)             {}
func (nopMetrics) RecordReconciliationRequired(context.Context, uuid.UUID)                   {}
func (nopMetrics) RecordSideChannelFailure(context.Context, string)                          {}

// NopMetrics returns a Metrics that discards everything
func NopMetrics() Metrics { return nopMetrics{} }
