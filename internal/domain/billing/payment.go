package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer,
		PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is one entry in an invoice's ledger
type Payment struct {
	shared.BaseEntity
	TenantID    uuid.UUID       `json:"tenant_id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      PaymentMethod   `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	RecordedBy  *uuid.UUID      `json:"recorded_by,omitempty"`
}

// NewPayment validates and creates a ledger entry. The balance check against
// the invoice happens in Invoice.RecordPayment.
func NewPayment(
	tenantID, invoiceID uuid.UUID,
	amount decimal.Decimal,
	paymentDate time.Time,
	method PaymentMethod,
	reference, notes string,
	recordedBy *uuid.UUID,
) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError(CodeInvalidAmount, "Payment amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(valueobject.Scale)) {
		return nil, shared.NewValidationError(CodeInvalidAmount, "Payment amount cannot have more than two decimal places")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError(CodeInvalidPaymentMethod,
			"Payment method must be one of cash, card, bank_transfer, check, other")
	}
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	return &Payment{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		InvoiceID:   invoiceID,
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      method,
		Reference:   strings.TrimSpace(reference),
		Notes:       strings.TrimSpace(notes),
		RecordedBy:  recordedBy,
	}, nil
}

// SumPayments adds the amounts of all payments
func SumPayments(payments []Payment) decimal.Decimal {
	total := valueobject.Zero()
	for _, p := range payments {
		total = total.Add(valueobject.NewMoney(p.Amount))
	}
	return total.Amount()
}

// SortPaymentsByDateDesc orders a ledger newest first. Payments on the same
// date keep the most recently recorded first.
func SortPaymentsByDateDesc(payments []Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		if !payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].PaymentDate.After(payments[j].PaymentDate)
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
}
