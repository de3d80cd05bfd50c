package billing

import (
	"fmt"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes surfaced to API clients
const (
	CodeInvoiceNotFound        = "INVOICE_NOT_FOUND"
	CodeClientNotFound         = "CLIENT_NOT_FOUND"
	CodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	CodeOrganizationNotFound   = "ORGANIZATION_NOT_FOUND"
	CodeNoItems                = "NO_ITEMS"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeInvalidRate            = "INVALID_RATE"
	CodeInvalidTaxRate         = "INVALID_TAX_RATE"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeOverpayment            = "OVERPAYMENT"
	CodeInvalidPaymentMethod   = "INVALID_PAYMENT_METHOD"
	CodeInvalidStatus          = "INVALID_STATUS"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodeDirectPaidForbidden    = "DIRECT_PAID_FORBIDDEN"
	CodeInvoiceCancelled       = "INVOICE_CANCELLED"
	CodeInvoiceNotDeletable    = "INVOICE_NOT_DELETABLE"
	CodeReconciliationRequired = "RECONCILIATION_REQUIRED"
	CodeRemovalInsufficient    = "REMOVAL_INSUFFICIENT"
	CodeRemovalUnknownPayment  = "REMOVAL_UNKNOWN_PAYMENT"
	CodeClientHasInvoices      = "CLIENT_HAS_INVOICES"
	CodeInvalidClient          = "INVALID_CLIENT"
	CodeInvalidDates           = "INVALID_DATES"
	CodeInvoiceNumberTaken     = "INVOICE_NUMBER_TAKEN"
	CodeVersionConflict        = "VERSION_CONFLICT"
)

// ReconciliationRequiredError is returned when an edit would leave an invoice
// with more recorded payments than its new total. It carries the ledger so the
// caller can choose which payments to remove.
type ReconciliationRequiredError struct {
	*shared.DomainError
	Payments []Payment
	Excess   decimal.Decimal
	NewTotal decimal.Decimal
}

// RemovalCandidate is the wire shape of a payment offered for removal
type RemovalCandidate struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date"`
	Method      string `json:"method"`
	Reference   string `json:"reference,omitempty"`
}

// ReconciliationDetails is attached to the error for transport layers
type ReconciliationDetails struct {
	Excess   string             `json:"excess"`
	NewTotal string             `json:"new_total"`
	Payments []RemovalCandidate `json:"payments"`
}

// NewReconciliationRequiredError creates the error for the given ledger and excess
func NewReconciliationRequiredError(payments []Payment, excess, newTotal decimal.Decimal) *ReconciliationRequiredError {
	details := ReconciliationDetails{
		Excess:   excess.StringFixed(2),
		NewTotal: newTotal.StringFixed(2),
		Payments: make([]RemovalCandidate, 0, len(payments)),
	}
	for _, p := range payments {
		details.Payments = append(details.Payments, RemovalCandidate{
			ID:          p.ID.String(),
			Amount:      p.Amount.StringFixed(2),
			PaymentDate: p.PaymentDate.Format("2006-01-02"),
			Method:      string(p.Method),
			Reference:   p.Reference,
		})
	}

	de := &shared.DomainError{
		Code: CodeReconciliationRequired,
		Message: fmt.Sprintf("Recorded payments exceed the new total by %s; select payments to remove",
			excess.StringFixed(2)),
		Kind:    shared.KindReconciliationRequired,
		Details: details,
	}
	return &ReconciliationRequiredError{
		DomainError: de,
		Payments:    payments,
		Excess:      excess,
		NewTotal:    newTotal,
	}
}

// Unwrap exposes the embedded DomainError to errors.As
func (e *ReconciliationRequiredError) Unwrap() error {
	return e.DomainError
}

// ErrInvoiceNotFound is returned when an invoice is missing or belongs to another organization
var ErrInvoiceNotFound = shared.NewNotFoundError(CodeInvoiceNotFound, "Invoice not found")

// ErrClientNotFound is returned when a client is missing or belongs to another organization
var ErrClientNotFound = shared.NewNotFoundError(CodeClientNotFound, "Client not found")

// ErrPaymentNotFound is returned when a payment is missing or belongs to another organization
var ErrPaymentNotFound = shared.NewNotFoundError(CodePaymentNotFound, "Payment not found")

// ErrOrganizationNotFound is returned when the organization record is missing
var ErrOrganizationNotFound = shared.NewNotFoundError(CodeOrganizationNotFound, "Organization not found")
