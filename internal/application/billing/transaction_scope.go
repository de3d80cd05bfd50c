package billing

import (
	"context"

	"github.com/invoicing/backend/internal/domain/billing"
)

// TransactionScope provides transactional access to billing repositories.
// Every financial mutation runs inside exactly one Execute call: invoice row,
// item rows, payment rows and the organization counter commit or roll back
// together.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A returned error rolls
	// the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to repositories sharing one transaction
type TransactionalRepositories interface {
	InvoiceRepo() billing.InvoiceRepository
	PaymentRepo() billing.PaymentRepository
	ClientRepo() billing.ClientRepository
	OrganizationRepo() billing.OrganizationRepository
}

// NoOpTransactionScope runs functions directly against the given repositories
// without a transaction. Used by tests with in-memory repositories.
type NoOpTransactionScope struct {
	invoiceRepo      billing.InvoiceRepository
	paymentRepo      billing.PaymentRepository
	clientRepo       billing.ClientRepository
	organizationRepo billing.OrganizationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	clientRepo billing.ClientRepository,
	organizationRepo billing.OrganizationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo:      invoiceRepo,
		paymentRepo:      paymentRepo,
		clientRepo:       clientRepo,
		organizationRepo: organizationRepo,
	}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository
func (s *NoOpTransactionScope) InvoiceRepo() billing.InvoiceRepository { return s.invoiceRepo }

// PaymentRepo returns the payment repository
func (s *NoOpTransactionScope) PaymentRepo() billing.PaymentRepository { return s.paymentRepo }

// ClientRepo returns the client repository
func (s *NoOpTransactionScope) ClientRepo() billing.ClientRepository { return s.clientRepo }

// OrganizationRepo returns the organization repository
func (s *NoOpTransactionScope) OrganizationRepo() billing.OrganizationRepository {
	return s.organizationRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
