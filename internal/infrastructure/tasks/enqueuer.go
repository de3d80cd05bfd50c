package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TaskClient is the part of *asynq.Client the enqueuer needs
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuerConfig controls how email tasks are queued
type EnqueuerConfig struct {
	Queue     string
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

// DefaultEnqueuerConfig returns the defaults used by the API process
func DefaultEnqueuerConfig() EnqueuerConfig {
	return EnqueuerConfig{
		Queue:     QueueCritical,
		MaxRetry:  5,
		Timeout:   30 * time.Second,
		Retention: 24 * time.Hour,
	}
}

// Enqueuer queues invoice emails on asynq. It implements billing.EmailEnqueuer.
type Enqueuer struct {
	client TaskClient
	config EnqueuerConfig
	logger *zap.Logger
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(client TaskClient, cfg EnqueuerConfig, logger *zap.Logger) *Enqueuer {
	def := DefaultEnqueuerConfig()
	if cfg.Queue == "" {
		cfg.Queue = def.Queue
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = def.MaxRetry
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enqueuer{client: client, config: cfg, logger: logger}
}

// EnqueueInvoiceEmail queues one delivery. The task ID is derived from the
// event ID, so publishing the same event twice queues one task.
func (e *Enqueuer) EnqueueInvoiceEmail(ctx context.Context, payload appbilling.InvoiceEmailPayload) error {
	ctx, span := telemetry.StartSpan(ctx, "tasks.enqueue",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute(telemetry.SpanAttrTaskType, TypeInvoiceEmailDeliver),
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, payload.InvoiceID.String()),
	)
	defer span.End()

	task, err := NewInvoiceEmailTask(payload)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.TaskID(emailTaskID(payload)),
		asynq.Queue(e.config.Queue),
		asynq.MaxRetry(e.config.MaxRetry),
		asynq.Timeout(e.config.Timeout),
		asynq.Retention(e.config.Retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		e.logger.Debug("invoice email task already queued", zap.String("event_id", payload.EventID.String()))
		return nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	e.logger.Debug("invoice email task queued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("invoice_id", payload.InvoiceID.String()),
	)
	return nil
}

func emailTaskID(payload appbilling.InvoiceEmailPayload) string {
	return "invoice-email:" + payload.EventID.String()
}

var _ appbilling.EmailEnqueuer = (*Enqueuer)(nil)
