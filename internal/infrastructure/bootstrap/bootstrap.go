// Package bootstrap wires the infrastructure shared by the API server and
// the worker: logger, telemetry, database and the billing services with
// their event subscribers.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// NewLogger builds the process logger from the log section
func NewLogger(cfg *config.Config, service string) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: service,
		Env:     cfg.App.Env,
	})
}

// Telemetry holds the trace and metric pipelines
type Telemetry struct {
	Tracer *telemetry.TracerProvider
	Meter  *telemetry.MeterProvider
}

// NewTelemetry starts both pipelines. Disabled telemetry yields no-op providers.
func NewTelemetry(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*Telemetry, error) {
	tp, err := telemetry.NewTracerProvider(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	mp, err := telemetry.NewMeterProvider(ctx, cfg, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &Telemetry{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes both pipelines
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Tracer.Shutdown(ctx), t.Meter.Shutdown(ctx))
}

// OpenDatabase connects to PostgreSQL with query logging through zap and
// attaches DB tracing and metrics. The returned DBMetrics is nil when
// metrics are disabled.
func OpenDatabase(ctx context.Context, cfg *config.Config, tel *Telemetry, log *zap.Logger) (*persistence.Database, *telemetry.DBMetrics, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, nil, err
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database.DBName), log); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("register db tracing: %w", err)
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, tel.Meter, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("register db metrics: %w", err)
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("Billing tables auto-migrated")
	}
	return db, dbMetrics, nil
}

// Billing bundles the billing services and their event plumbing
type Billing struct {
	Invoices *appbilling.InvoiceService
	Clients  *appbilling.ClientService
	Scope    appbilling.TransactionScope
	Bus      *event.InMemoryEventBus
	Store    shared.IdempotencyStore
	Metrics  *telemetry.BusinessMetrics
}

// NewBilling builds the services on db. The audit handler is always
// subscribed. With a non-nil mailQueue, sent invoices also queue their email.
func NewBilling(ctx context.Context, cfg *config.Config, db *persistence.Database, tel *Telemetry, log *zap.Logger, mailQueue appbilling.EmailEnqueuer) (*Billing, error) {
	store, err := cache.NewIdempotencyStore(ctx, cfg.Redis, !cfg.App.IsProduction(), log)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:       tel.Meter.Meter("invoicing.billing"),
		Logger:      log,
		Receivables: telemetry.NewGormReceivablesProvider(db.DB),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := event.NewInMemoryEventBus(log.Named("events"),
		event.WithAsyncWorkers(cfg.Event.AsyncWorkers, 0),
		event.WithFailureHook(func(ctx context.Context, evt shared.DomainEvent, err error) {
			metrics.RecordSideChannelFailure(ctx, evt.EventType())
		}),
	)

	idem := shared.DefaultIdempotencyConfig()
	if cfg.Event.IdempotencyTTL > 0 {
		idem.TTL = cfg.Event.IdempotencyTTL
	}
	handlers := []event.NamedHandler{{
		Name:    "audit",
		Handler: appbilling.NewAuditHandler(persistence.NewGormAuditLogRepository(db.DB), metrics, log.Named("audit")),
	}}
	if mailQueue != nil {
		handlers = append(handlers, event.NamedHandler{
			Name:    "invoice-email",
			Handler: appbilling.NewInvoiceSentHandler(mailQueue, metrics, log.Named("invoice-email")),
		})
	}
	event.SubscribeIdempotent(bus, store, idem, log, handlers...)

	scope := persistence.NewGormTransactionScope(db.DB)
	opts := []appbilling.Option{
		appbilling.WithEventPublisher(bus),
		appbilling.WithMetrics(metrics),
		appbilling.WithLogger(log.Named("billing")),
		appbilling.WithNumbering(appbilling.NumberingConfig{
			SequenceWidth:  cfg.Invoice.SequenceWidth,
			DefaultDueDays: cfg.Invoice.DefaultDueDays,
		}),
	}
	return &Billing{
		Invoices: appbilling.NewInvoiceService(scope, opts...),
		Clients:  appbilling.NewClientService(scope, opts...),
		Scope:    scope,
		Bus:      bus,
		Store:    store,
		Metrics:  metrics,
	}, nil
}

// Start begins asynchronous event dispatch
func (b *Billing) Start(ctx context.Context) error {
	return b.Bus.Start(ctx)
}

// Close drains the event bus and releases the idempotency store
func (b *Billing) Close(ctx context.Context) error {
	err := b.Bus.Stop(ctx)
	b.Metrics.Stop()
	return errors.Join(err, b.Store.Close())
}
