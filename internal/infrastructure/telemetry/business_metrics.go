package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("business metrics: meter cannot be nil")

// ReceivableSummary is the open balance of one status within one tenant
type ReceivableSummary struct {
	TenantID     uuid.UUID
	Status       string
	InvoiceCount int64
	BalanceDue   decimal.Decimal
}

// ReceivablesProvider reports outstanding balances for the periodic gauges
type ReceivablesProvider interface {
	OutstandingReceivables(ctx context.Context) ([]ReceivableSummary, error)
}

// BusinessMetricsConfig configures BusinessMetrics
type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	// Receivables enables the outstanding balance gauges when set
	Receivables     ReceivablesProvider
	CollectInterval time.Duration
}

// BusinessMetrics records invoicing counters. It satisfies the billing
// application's Metrics port.
type BusinessMetrics struct {
	logger *zap.Logger

	invoicesCreated        *Counter
	paymentsRecorded       *Counter
	paymentsDeleted        *Counter
	statusChanges          *Counter
	reconciliationRequired *Counter
	sideChannelFailures    *Counter
	paymentAmount          *Histogram

	outstandingCount   *Gauge
	outstandingBalance *FloatGauge

	receivables     ReceivablesProvider
	collectInterval time.Duration
	collectOnce     sync.Once
	stopOnce        sync.Once
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewBusinessMetrics creates the instruments
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	bm := &BusinessMetrics{
		logger:          logger,
		receivables:     cfg.Receivables,
		collectInterval: interval,
		stopCh:          make(chan struct{}),
	}

	counters := []struct {
		dst  **Counter
		name string
		desc string
		unit string
	}{
		{&bm.invoicesCreated, "invoices_created_total", "Invoices created", "{invoice}"},
		{&bm.paymentsRecorded, "payments_recorded_total", "Payments recorded", "{payment}"},
		{&bm.paymentsDeleted, "payments_deleted_total", "Payments removed from ledgers", "{payment}"},
		{&bm.statusChanges, "invoice_status_changes_total", "Invoice status transitions", "{transition}"},
		{&bm.reconciliationRequired, "reconciliation_required_total", "Edits that required payment removal", "{edit}"},
		{&bm.sideChannelFailures, "side_channel_failures_total", "Failed audit, email or publish side effects", "{failure}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	bm.paymentAmount, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "payment_amount",
		Description: "Distribution of recorded payment amounts",
		Unit:        "{currency}",
		Boundaries:  PaymentAmountBuckets,
	})
	if err != nil {
		return nil, err
	}

	bm.outstandingCount, err = NewGauge(cfg.Meter, "invoices_outstanding", "Invoices with an open balance", "{invoice}")
	if err != nil {
		return nil, err
	}
	bm.outstandingBalance, err = NewFloatGauge(cfg.Meter, "receivables_outstanding", "Open balance due", "{currency}")
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordInvoiceCreated counts a created invoice
func (bm *BusinessMetrics) RecordInvoiceCreated(ctx context.Context, tenantID uuid.UUID) {
	bm.invoicesCreated.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordPaymentRecorded counts a payment and records its amount
func (bm *BusinessMetrics) RecordPaymentRecorded(ctx context.Context, tenantID uuid.UUID, method string, amount decimal.Decimal) {
	tenant := AttrTenantID.String(tenantID.String())
	m := AttrPaymentMethod.String(method)
	bm.paymentsRecorded.Inc(ctx, tenant, m)
	bm.paymentAmount.Record(ctx, amount.InexactFloat64(), m)
}

// RecordPaymentsDeleted counts removed payments
func (bm *BusinessMetrics) RecordPaymentsDeleted(ctx context.Context, tenantID uuid.UUID, reason string, count int) {
	if count <= 0 {
		return
	}
	bm.paymentsDeleted.Add(ctx, int64(count),
		AttrTenantID.String(tenantID.String()),
		AttrReason.String(reason),
	)
}

// RecordStatusChange counts a status transition
func (bm *BusinessMetrics) RecordStatusChange(ctx context.Context, tenantID uuid.UUID, from, to string) {
	bm.statusChanges.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
	)
}

// RecordReconciliationRequired counts an edit that was refused pending payment removal
func (bm *BusinessMetrics) RecordReconciliationRequired(ctx context.Context, tenantID uuid.UUID) {
	bm.reconciliationRequired.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordSideChannelFailure counts a failed side effect
func (bm *BusinessMetrics) RecordSideChannelFailure(ctx context.Context, channel string) {
	bm.sideChannelFailures.Inc(ctx, AttrChannel.String(channel))
}

// StartPeriodicCollection refreshes the outstanding gauges until Stop or ctx
// is done. Without a receivables provider it does nothing.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context) {
	if bm.receivables == nil {
		return
	}
	bm.collectOnce.Do(func() {
		bm.wg.Add(1)
		go func() {
			defer bm.wg.Done()
			ticker := time.NewTicker(bm.collectInterval)
			defer ticker.Stop()

			bm.CollectReceivables(ctx)
			for {
				select {
				case <-bm.stopCh:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					bm.CollectReceivables(ctx)
				}
			}
		}()
	})
}

// CollectReceivables records one snapshot of the outstanding gauges
func (bm *BusinessMetrics) CollectReceivables(ctx context.Context) {
	if bm.receivables == nil {
		return
	}
	summaries, err := bm.receivables.OutstandingReceivables(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect receivables metrics", zap.Error(err))
		return
	}
	for _, s := range summaries {
		attrs := []attribute.KeyValue{
			AttrTenantID.String(s.TenantID.String()),
			AttrStatus.String(s.Status),
		}
		bm.outstandingCount.Record(ctx, s.InvoiceCount, attrs...)
		bm.outstandingBalance.Record(ctx, s.BalanceDue.InexactFloat64(), attrs...)
	}
}

// Stop ends periodic collection and waits for the collector
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopCh)
	})
	bm.wg.Wait()
}
