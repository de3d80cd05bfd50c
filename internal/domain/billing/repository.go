package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Status   InvoiceStatus
	ClientID *uuid.UUID
}

// InvoiceRepository persists Invoice aggregates together with their items
type InvoiceRepository interface {
	// FindByIDForTenant loads an invoice with items. Returns ErrInvoiceNotFound
	// when the invoice does not exist or belongs to another tenant.
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads an invoice and takes a row lock on it for the
	// rest of the transaction.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindAllForTenant lists invoices without items
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindByClient returns every invoice of a client, without items
	FindByClient(ctx context.Context, tenantID, clientID uuid.UUID) ([]Invoice, error)

	// FindDueBefore returns sent invoices with a due date before asOf
	FindDueBefore(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]Invoice, error)

	// CountByClient counts invoices referencing a client
	CountByClient(ctx context.Context, tenantID, clientID uuid.UUID) (int64, error)

	// Create inserts a new invoice and its items. A duplicate invoice number
	// is reported as a conflict.
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates the invoice row if its stored version is one less
	// than invoice.Version, and replaces its items when replaceItems is set.
	SaveWithLock(ctx context.Context, invoice *Invoice, replaceItems bool) error

	// Delete removes the invoice and its items
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// PaymentRepository persists invoice ledgers
type PaymentRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByInvoice returns the ledger ordered by payment date descending
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	Create(ctx context.Context, payment *Payment) error

	// DeleteByIDs removes the given payments of one invoice
	DeleteByIDs(ctx context.Context, tenantID, invoiceID uuid.UUID, ids []uuid.UUID) error

	// DeleteByInvoice truncates an invoice's ledger
	DeleteByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) error
}

// ClientRepository persists clients
type ClientRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Client, int64, error)
	Create(ctx context.Context, client *Client) error
	SaveWithLock(ctx context.Context, client *Client) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// OrganizationRepository reads organizations and allocates invoice numbers
type OrganizationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Organization, error)

	// ListIDs returns every organization id; used by tenant-wide sweeps
	ListIDs(ctx context.Context) ([]uuid.UUID, error)

	// AllocateInvoiceNumber atomically increments the organization's counter
	// and returns the prefix and the sequence value that was reserved.
	AllocateInvoiceNumber(ctx context.Context, id uuid.UUID) (prefix string, sequence int64, err error)
}
