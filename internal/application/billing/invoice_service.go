package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// NumberingConfig controls invoice numbers and default due dates
type NumberingConfig struct {
	// SequenceWidth is the zero-padded width of the sequence part
	SequenceWidth int
	// DefaultDueDays is added to the issue date when no due date is given.
	// Zero leaves the due date empty.
	DefaultDueDays int
}

// DefaultNumberingConfig returns INV-2026-0001 style numbering with 30 day terms
func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{SequenceWidth: 4, DefaultDueDays: 30}
}

// InvoiceService runs the financial operations on invoices and payments.
// Each mutation is one transaction; domain events are published after commit.
type InvoiceService struct {
	scope     TransactionScope
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger
	numbering NumberingConfig
	now       func() time.Time
}

// Option configures an InvoiceService or ClientService
type Option func(*serviceOptions)

type serviceOptions struct {
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger
	numbering NumberingConfig
	now       func() time.Time
}

// WithEventPublisher sets the publisher that receives domain events after commit
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(o *serviceOptions) { o.publisher = p }
}

// WithMetrics sets the business metrics sink
func WithMetrics(m Metrics) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithNumbering sets invoice numbering and due date defaults
func WithNumbering(cfg NumberingConfig) Option {
	return func(o *serviceOptions) { o.numbering = cfg }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

func buildOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		metrics:   NopMetrics(),
		logger:    zap.NewNop(),
		numbering: DefaultNumberingConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(scope TransactionScope, opts ...Option) *InvoiceService {
	o := buildOptions(opts)
	return &InvoiceService{
		scope:     scope,
		publisher: o.publisher,
		metrics:   o.metrics,
		logger:    o.logger,
		numbering: o.numbering,
		now:       o.now,
	}
}

// CreateInvoice allocates the next invoice number and stores a draft invoice
// in one transaction.
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID, userID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	var inv *billing.Invoice
	var balance billing.ClientBalance
	err := withConflictRetry(ctx, s.logger, "create_invoice", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			client, err := repos.ClientRepo().FindByIDForTenant(ctx, tenantID, req.ClientID)
			if err != nil {
				return err
			}

			now := s.now()
			issueDate := now
			if req.IssueDate != nil {
				issueDate = *req.IssueDate
			}
			dueDate := req.DueDate
			if dueDate == nil && s.numbering.DefaultDueDays > 0 {
				d := issueDate.AddDate(0, 0, s.numbering.DefaultDueDays)
				dueDate = &d
			}

			prefix, seq, err := repos.OrganizationRepo().AllocateInvoiceNumber(ctx, tenantID)
			if err != nil {
				return err
			}

			created, err := billing.NewInvoice(billing.NewInvoiceParams{
				TenantID:      tenantID,
				ClientID:      client.ID,
				CreatedBy:     userID,
				InvoiceNumber: billing.FormatInvoiceNumber(prefix, issueDate.Year(), seq, s.numbering.SequenceWidth),
				IssueDate:     issueDate,
				DueDate:       dueDate,
				TaxRate:       req.TaxRate,
				Notes:         req.Notes,
				Items:         toLineItems(req.Items),
			})
			if err != nil {
				return err
			}
			if err := repos.InvoiceRepo().Create(ctx, created); err != nil {
				return err
			}

			balance, err = clientBalance(ctx, repos, tenantID, client.ID)
			if err != nil {
				return err
			}
			inv = created
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, inv.ID.String(), telemetry.SpanAttrInvoiceNumber, inv.InvoiceNumber)
	s.metrics.RecordInvoiceCreated(ctx, tenantID)
	s.publish(ctx, inv)

	return &InvoiceResult{Invoice: ToInvoiceResponse(inv), ClientBalance: balanceResponse(balance)}, nil
}

// GetInvoice returns one invoice with its items
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	var inv *billing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// ListInvoices returns a page of invoices without items
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "issue_date"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := billing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		ClientID: filter.ClientID,
	}
	if filter.Status != "" {
		status := billing.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewValidationError(billing.CodeInvalidStatus, "Unknown invoice status filter")
		}
		domainFilter.Status = status
	}

	var invoices []billing.Invoice
	var total int64
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		invoices, total, err = repos.InvoiceRepo().FindAllForTenant(ctx, tenantID, domainFilter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return ToInvoiceResponses(invoices), total, nil
}

// ProposeEdit applies new items, tax rate and header fields if the recorded
// payments still fit under the new total. Otherwise nothing is written and
// the result carries the ledger and the excess so the caller can pick
// payments to remove and call ConfirmEdit.
func (s *InvoiceService) ProposeEdit(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req UpdateInvoiceRequest) (*EditResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "propose_edit")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	actor := &userID
	edit := req.toEdit()

	var inv *billing.Invoice
	var balance billing.ClientBalance
	var reconciliation *billing.ReconciliationRequiredError
	err := withConflictRetry(ctx, s.logger, "propose_edit", func() error {
		reconciliation = nil
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			ledger, err := repos.PaymentRepo().FindByInvoice(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}

			plan, err := billing.PlanEdit(edit.Items, edit.TaxRate, ledger)
			if err != nil {
				return err
			}
			if plan.NeedsPaymentRemoval() {
				billing.SortPaymentsByDateDesc(ledger)
				reconciliation = billing.NewReconciliationRequiredError(ledger, plan.Excess, plan.Totals.Total)
				return nil
			}

			if err := loaded.ApplyEdit(edit, plan, ledger, nil, actor, s.now()); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, loaded, true); err != nil {
				return err
			}
			balance, err = clientBalance(ctx, repos, tenantID, loaded.ClientID)
			if err != nil {
				return err
			}
			inv = loaded
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if reconciliation != nil {
		s.metrics.RecordReconciliationRequired(ctx, tenantID)
		s.logger.Info("invoice edit needs payment removal",
			zap.String("tenant_id", tenantID.String()),
			zap.String(telemetry.SpanAttrInvoiceID, invoiceID.String()),
			zap.String("excess", reconciliation.Excess.StringFixed(2)),
		)
		return &EditResult{Applied: false, Reconciliation: reconciliation}, nil
	}

	s.publish(ctx, inv)
	return &EditResult{
		Applied: true,
		Result:  &InvoiceResult{Invoice: ToInvoiceResponse(inv), ClientBalance: balanceResponse(balance)},
	}, nil
}

// UpdateInvoice is ProposeEdit for callers that treat a needed payment
// removal as an error. It returns *billing.ReconciliationRequiredError in
// that case.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResult, error) {
	result, err := s.ProposeEdit(ctx, tenantID, userID, invoiceID, req)
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		return nil, result.Reconciliation
	}
	return result.Result, nil
}

// ConfirmEdit applies an edit together with the removal of the selected
// payments. The selection must cover the excess of payments over the new
// total; otherwise nothing changes.
func (s *InvoiceService) ConfirmEdit(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req ConfirmEditRequest) (*InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "confirm_edit")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String(), "remove_count", len(req.RemovePaymentIDs))

	actor := &userID
	edit := req.toEdit()

	var inv *billing.Invoice
	var balance billing.ClientBalance
	var removedCount int
	err := withConflictRetry(ctx, s.logger, "confirm_edit", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			ledger, err := repos.PaymentRepo().FindByInvoice(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}

			plan, err := billing.PlanEdit(edit.Items, edit.TaxRate, ledger)
			if err != nil {
				return err
			}
			kept, removed, err := billing.SelectRemovals(plan, ledger, req.RemovePaymentIDs)
			if err != nil {
				return err
			}
			if err := loaded.ApplyEdit(edit, plan, kept, removed, actor, s.now()); err != nil {
				return err
			}

			if len(removed) > 0 {
				ids := make([]uuid.UUID, len(removed))
				for i, p := range removed {
					ids[i] = p.ID
				}
				if err := repos.PaymentRepo().DeleteByIDs(ctx, tenantID, invoiceID, ids); err != nil {
					return err
				}
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, loaded, true); err != nil {
				return err
			}
			balance, err = clientBalance(ctx, repos, tenantID, loaded.ClientID)
			if err != nil {
				return err
			}
			inv = loaded
			removedCount = len(removed)
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if removedCount > 0 {
		s.metrics.RecordPaymentsDeleted(ctx, tenantID, PaymentRemovalEdit, removedCount)
	}
	s.publish(ctx, inv)
	return &InvoiceResult{Invoice: ToInvoiceResponse(inv), ClientBalance: balanceResponse(balance)}, nil
}

// UpdateInvoiceStatus applies a user-requested status change. Setting the
// current status is a no-op that writes nothing and returns no balance.
// Cancelling purges the ledger in the same transaction.
func (s *InvoiceService) UpdateInvoiceStatus(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, status string) (*InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_status")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String(), telemetry.SpanAttrInvoiceStatus, status)

	target := billing.InvoiceStatus(status)
	actor := &userID

	var inv *billing.Invoice
	var balance *billing.ClientBalance
	var from billing.InvoiceStatus
	var changed bool
	var purged int
	err := withConflictRetry(ctx, s.logger, "update_invoice_status", func() error {
		balance = nil
		purged = 0
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			from = loaded.Status

			changed, err = loaded.ChangeStatus(target, actor, s.now())
			if err != nil {
				return err
			}
			inv = loaded
			if !changed {
				return nil
			}

			if target == billing.InvoiceStatusCancelled {
				ledger, err := repos.PaymentRepo().FindByInvoice(ctx, tenantID, invoiceID)
				if err != nil {
					return err
				}
				if err := repos.PaymentRepo().DeleteByInvoice(ctx, tenantID, invoiceID); err != nil {
					return err
				}
				for _, e := range loaded.GetDomainEvents() {
					if cancelled, ok := e.(*billing.InvoiceCancelledEvent); ok {
						cancelled.RecordPurge(ledger)
					}
				}
				purged = len(ledger)
			}

			if err := repos.InvoiceRepo().SaveWithLock(ctx, loaded, false); err != nil {
				return err
			}
			b, err := clientBalance(ctx, repos, tenantID, loaded.ClientID)
			if err != nil {
				return err
			}
			balance = &b
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &InvoiceResult{Invoice: ToInvoiceResponse(inv)}
	if !changed {
		return result, nil
	}

	s.metrics.RecordStatusChange(ctx, tenantID, string(from), string(target))
	if purged > 0 {
		s.metrics.RecordPaymentsDeleted(ctx, tenantID, PaymentRemovalCancel, purged)
	}
	s.publish(ctx, inv)
	result.ClientBalance = balanceResponse(*balance)
	return result, nil
}

// RecordPayment adds a payment to an invoice's ledger. The invoice row is
// locked and the balance is recomputed from the ledger inside the
// transaction, so concurrent payments cannot overpay.
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req RecordPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String(), telemetry.SpanAttrAmount, req.Amount.String())

	actor := &userID
	var inv *billing.Invoice
	var payment *billing.Payment
	var balance billing.ClientBalance
	err := withConflictRetry(ctx, s.logger, "record_payment", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			ledger, err := repos.PaymentRepo().FindByInvoice(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}

			paymentDate := s.now()
			if req.PaymentDate != nil {
				paymentDate = *req.PaymentDate
			}
			p, err := billing.NewPayment(tenantID, invoiceID, req.Amount, paymentDate,
				billing.PaymentMethod(req.Method), req.Reference, req.Notes, actor)
			if err != nil {
				return err
			}
			if _, err := loaded.RecordPayment(p, ledger, actor, s.now()); err != nil {
				return err
			}

			if err := repos.PaymentRepo().Create(ctx, p); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, loaded, false); err != nil {
				return err
			}
			balance, err = clientBalance(ctx, repos, tenantID, loaded.ClientID)
			if err != nil {
				return err
			}
			inv, payment = loaded, p
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordPaymentRecorded(ctx, tenantID, string(payment.Method), payment.Amount)
	s.publish(ctx, inv)
	return &PaymentResult{
		Payment:       ToPaymentResponse(payment),
		Invoice:       ToInvoiceResponse(inv),
		ClientBalance: balanceResponse(balance),
	}, nil
}

// DeletePayment removes one payment and reconciles its invoice in the same
// transaction.
func (s *InvoiceService) DeletePayment(ctx context.Context, tenantID, userID, paymentID uuid.UUID) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	actor := &userID
	var inv *billing.Invoice
	var removed *billing.Payment
	var balance billing.ClientBalance
	err := withConflictRetry(ctx, s.logger, "delete_payment", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			p, err := repos.PaymentRepo().FindByIDForTenant(ctx, tenantID, paymentID)
			if err != nil {
				return err
			}
			loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, p.InvoiceID)
			if err != nil {
				return err
			}
			ledger, err := repos.PaymentRepo().FindByInvoice(ctx, tenantID, p.InvoiceID)
			if err != nil {
				return err
			}

			_, gone, err := loaded.RemovePayment(paymentID, ledger, actor, s.now())
			if err != nil {
				return err
			}
			if err := repos.PaymentRepo().DeleteByIDs(ctx, tenantID, loaded.ID, []uuid.UUID{paymentID}); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, loaded, false); err != nil {
				return err
			}
			balance, err = clientBalance(ctx, repos, tenantID, loaded.ClientID)
			if err != nil {
				return err
			}
			inv, removed = loaded, gone
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordPaymentsDeleted(ctx, tenantID, PaymentRemovalManual, 1)
	s.publish(ctx, inv)
	return &PaymentResult{
		Payment:       ToPaymentResponse(removed),
		Invoice:       ToInvoiceResponse(inv),
		ClientBalance: balanceResponse(balance),
	}, nil
}

// ListPayments returns an invoice's ledger, newest payment date first
func (s *InvoiceService) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	var ledger []billing.Payment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.InvoiceRepo().FindByIDForTenant(ctx, tenantID, invoiceID); err != nil {
			return err
		}
		var err error
		ledger, err = repos.PaymentRepo().FindByInvoice(ctx, tenantID, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	billing.SortPaymentsByDateDesc(ledger)
	return ToPaymentResponses(ledger), nil
}

// DeleteInvoice removes a draft or cancelled invoice with its items and payments
func (s *InvoiceService) DeleteInvoice(ctx context.Context, tenantID, userID, invoiceID uuid.UUID) (*ClientBalanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var inv *billing.Invoice
	var balance billing.ClientBalance
	err := withConflictRetry(ctx, s.logger, "delete_invoice", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			if err := loaded.MarkDeleted(&userID); err != nil {
				return err
			}
			if err := repos.PaymentRepo().DeleteByInvoice(ctx, tenantID, invoiceID); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().Delete(ctx, tenantID, invoiceID); err != nil {
				return err
			}
			balance, err = clientBalance(ctx, repos, tenantID, loaded.ClientID)
			if err != nil {
				return err
			}
			inv = loaded
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, inv)
	return balanceResponse(balance), nil
}

// MarkOverdue moves a tenant's sent invoices whose due date is before asOf
// to overdue. Each invoice is its own transaction; failures are logged and
// the sweep continues.
func (s *InvoiceService) MarkOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "mark_overdue")
	defer span.End()

	var candidates []billing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		candidates, err = repos.InvoiceRepo().FindDueBefore(ctx, tenantID, asOf)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	marked := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return marked, ctx.Err()
		}
		var inv *billing.Invoice
		err := withConflictRetry(ctx, s.logger, "mark_overdue", func() error {
			inv = nil
			return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
				loaded, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, candidate.ID)
				if err != nil {
					return err
				}
				if !loaded.IsOverdueAt(asOf) {
					return nil
				}
				if _, err := loaded.ChangeStatus(billing.InvoiceStatusOverdue, nil, s.now()); err != nil {
					return err
				}
				if err := repos.InvoiceRepo().SaveWithLock(ctx, loaded, false); err != nil {
					return err
				}
				inv = loaded
				return nil
			})
		})
		if err != nil {
			s.logger.Warn("failed to mark invoice overdue",
				zap.String("tenant_id", tenantID.String()),
				zap.String("invoice_id", candidate.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if inv == nil {
			continue
		}
		marked++
		s.metrics.RecordStatusChange(ctx, tenantID, string(billing.InvoiceStatusSent), string(billing.InvoiceStatusOverdue))
		s.publish(ctx, inv)
	}

	telemetry.SetAttribute(span, "marked", marked)
	return marked, nil
}

// MarkOverdueAllTenants runs MarkOverdue for every organization
func (s *InvoiceService) MarkOverdueAllTenants(ctx context.Context, asOf time.Time) (int, error) {
	var tenants []uuid.UUID
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		tenants, err = repos.OrganizationRepo().ListIDs(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, tenantID := range tenants {
		n, err := s.MarkOverdue(ctx, tenantID, asOf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// GetClientBalance recomputes a client's invoice summary
func (s *InvoiceService) GetClientBalance(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientBalanceResponse, error) {
	var balance billing.ClientBalance
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.ClientRepo().FindByIDForTenant(ctx, tenantID, clientID); err != nil {
			return err
		}
		var err error
		balance, err = clientBalance(ctx, repos, tenantID, clientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balanceResponse(balance), nil
}

// publish hands the aggregate's events to the publisher. Publish failures
// are reported and never undo the committed transaction.
func (s *InvoiceService) publish(ctx context.Context, agg shared.AggregateRoot) {
	publishEvents(ctx, s.publisher, s.metrics, s.logger, agg)
}

func publishEvents(ctx context.Context, publisher shared.EventPublisher, metrics Metrics, logger *zap.Logger, agg shared.AggregateRoot) {
	defer agg.ClearDomainEvents()
	if publisher == nil {
		return
	}
	events := agg.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		metrics.RecordSideChannelFailure(ctx, ChannelPublish)
		logger.Warn("failed to publish domain events",
			zap.String("aggregate_id", agg.GetID().String()),
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}

func clientBalance(ctx context.Context, repos TransactionalRepositories, tenantID, clientID uuid.UUID) (billing.ClientBalance, error) {
	invoices, err := repos.InvoiceRepo().FindByClient(ctx, tenantID, clientID)
	if err != nil {
		return billing.ClientBalance{}, err
	}
	return billing.AggregateClientBalance(clientID, invoices), nil
}
