package billing

import (
	"context"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceMail is everything needed to render an invoice email
type InvoiceMail struct {
	To            string
	ClientName    string
	FromName      string
	ReplyTo       string
	Locale        string
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       *time.Time
	Total         decimal.Decimal
	BalanceDue    decimal.Decimal
	Reminder      bool
}

// InvoiceMailSender renders and delivers an invoice email
type InvoiceMailSender interface {
	SendInvoice(ctx context.Context, mail InvoiceMail) error
}

// InvoiceMailer delivers queued invoice emails. Each payload is delivered at
// most once per idempotency TTL.
type InvoiceMailer struct {
	scope   TransactionScope
	sender  InvoiceMailSender
	store   shared.IdempotencyStore
	ttl     time.Duration
	metrics Metrics
	logger  *zap.Logger
}

// NewInvoiceMailer creates a new InvoiceMailer. store may be nil.
func NewInvoiceMailer(scope TransactionScope, sender InvoiceMailSender, store shared.IdempotencyStore, ttl time.Duration, metrics Metrics, logger *zap.Logger) *InvoiceMailer {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &InvoiceMailer{
		scope:   scope,
		sender:  sender,
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Deliver sends the email for one payload. A missing invoice, a client
// without an email address and a cancelled invoice are skipped without error.
func (m *InvoiceMailer) Deliver(ctx context.Context, payload InvoiceEmailPayload) error {
	key := "invoice-email:" + payload.EventID.String()
	if m.store != nil {
		done, err := m.store.IsProcessed(ctx, key)
		if err != nil {
			m.logger.Warn("failed to check email idempotency, sending anyway",
				zap.String("event_id", payload.EventID.String()),
				zap.Error(err),
			)
		} else if done {
			m.logger.Debug("invoice email already delivered", zap.String("event_id", payload.EventID.String()))
			return nil
		}
	}

	var mail *InvoiceMail
	err := m.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByIDForTenant(ctx, payload.TenantID, payload.InvoiceID)
		if err != nil {
			return err
		}
		if inv.IsCancelled() {
			return nil
		}
		client, err := repos.ClientRepo().FindByIDForTenant(ctx, payload.TenantID, inv.ClientID)
		if err != nil {
			return err
		}
		if client.Email == "" {
			return nil
		}
		org, err := repos.OrganizationRepo().FindByID(ctx, payload.TenantID)
		if err != nil {
			return err
		}
		mail = &InvoiceMail{
			To:            client.Email,
			ClientName:    client.Name,
			FromName:      org.Name,
			ReplyTo:       org.Email,
			Locale:        org.Locale,
			InvoiceNumber: inv.InvoiceNumber,
			IssueDate:     inv.IssueDate,
			DueDate:       inv.DueDate,
			Total:         inv.Total,
			BalanceDue:    inv.BalanceDue,
			Reminder:      !payload.FirstSend,
		}
		return nil
	})
	if shared.IsNotFound(err) {
		m.logger.Info("invoice email skipped, record no longer exists",
			zap.String("invoice_id", payload.InvoiceID.String()),
			zap.Error(err),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if mail == nil {
		m.logger.Info("invoice email skipped",
			zap.String("invoice_id", payload.InvoiceID.String()),
		)
		return nil
	}

	if err := m.sender.SendInvoice(ctx, *mail); err != nil {
		m.metrics.RecordSideChannelFailure(ctx, ChannelEmail)
		return err
	}

	if m.store != nil {
		if _, err := m.store.MarkProcessed(ctx, key, m.ttl); err != nil {
			m.logger.Warn("failed to record email delivery", zap.String("event_id", payload.EventID.String()), zap.Error(err))
		}
	}
	m.logger.Info("invoice email sent",
		zap.String("tenant_id", payload.TenantID.String()),
		zap.String("invoice_number", mail.InvoiceNumber),
		zap.Bool("reminder", mail.Reminder),
	)
	return nil
}
