package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InvoiceDeliverer sends the email for a queued payload
type InvoiceDeliverer interface {
	Deliver(ctx context.Context, payload appbilling.InvoiceEmailPayload) error
}

// OverdueSweeper moves past-due invoices to overdue across tenants
type OverdueSweeper interface {
	MarkOverdueAllTenants(ctx context.Context, asOf time.Time) (int, error)
}

// Processor holds the task handlers
type Processor struct {
	mailer  InvoiceDeliverer
	sweeper OverdueSweeper
	now     func() time.Time
	logger  *zap.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(mailer InvoiceDeliverer, sweeper OverdueSweeper, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		mailer:  mailer,
		sweeper: sweeper,
		now:     time.Now,
		logger:  logger,
	}
}

// Register attaches the handlers and the tracing middleware to mux
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.Use(p.traceTask)
	mux.HandleFunc(TypeInvoiceEmailDeliver, p.HandleInvoiceEmail)
	mux.HandleFunc(TypeOverdueSweep, p.HandleOverdueSweep)
}

// HandleInvoiceEmail delivers one invoice email. Malformed payloads and
// validation failures are not retried.
func (p *Processor) HandleInvoiceEmail(ctx context.Context, t *asynq.Task) error {
	var payload appbilling.InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal invoice email payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TenantID == uuid.Nil || payload.InvoiceID == uuid.Nil || payload.EventID == uuid.Nil {
		return fmt.Errorf("invoice email payload is missing ids: %w", asynq.SkipRetry)
	}

	err := p.mailer.Deliver(ctx, payload)
	if shared.IsValidation(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		retry, _ := asynq.GetRetryCount(ctx)
		p.logger.Warn("invoice email delivery failed",
			zap.String("tenant_id", payload.TenantID.String()),
			zap.String("invoice_id", payload.InvoiceID.String()),
			zap.Int("retry", retry),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// HandleOverdueSweep runs the overdue sweep for all tenants
func (p *Processor) HandleOverdueSweep(ctx context.Context, t *asynq.Task) error {
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal overdue sweep payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = p.now().UTC()
	}

	start := time.Now()
	marked, err := p.sweeper.MarkOverdueAllTenants(ctx, asOf)
	if err != nil {
		p.logger.Error("overdue sweep failed",
			zap.Time("as_of", asOf),
			zap.Int("marked", marked),
			zap.Error(err),
		)
		return err
	}
	p.logger.Info("overdue sweep finished",
		zap.Time("as_of", asOf),
		zap.Int("marked", marked),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (p *Processor) traceTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		ctx, span := telemetry.StartSpan(ctx, "tasks.process "+t.Type(),
			telemetry.WithSpanKind(trace.SpanKindConsumer),
			telemetry.WithAttribute(telemetry.SpanAttrTaskType, t.Type()),
		)
		defer span.End()
		if id, ok := asynq.GetTaskID(ctx); ok {
			telemetry.SetAttribute(span, "task_id", id)
		}

		err := next.ProcessTask(ctx, t)
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		telemetry.SetOK(span)
		return nil
	})
}
