package billing

import (
	"fmt"

	"github.com/invoicing/backend/internal/domain/shared"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// AllInvoiceStatuses lists every status in display order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPartial,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// IsValid checks if the status is a known InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartial,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled
}

// IsPaymentDriven returns true for statuses that only reconciliation may assign
func (s InvoiceStatus) IsPaymentDriven() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusPartial
}

// AcceptsPayments returns true if payments may be recorded in this status
func (s InvoiceStatus) AcceptsPayments() bool {
	return s != InvoiceStatusCancelled
}

// userTransitions lists the status changes a user may request directly.
// paid and partial never appear as targets: they are assigned by Settle.
// overdue is only entered from sent, so an invoice carrying payments always
// reports partial or paid.
var userTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:      {InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusPartial:   {InvoiceStatusCancelled},
	InvoiceStatusOverdue:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {},
}

// CanTransitionTo reports whether a user may move an invoice from s to target
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range userTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ValidateUserTransition checks a user-requested status change.
// A request to set the current status is valid and means "no change",
// except for paid, which is rejected unconditionally.
func ValidateUserTransition(from, to InvoiceStatus) error {
	if !to.IsValid() {
		return shared.NewValidationError(CodeInvalidStatus, fmt.Sprintf("Unknown invoice status %q", to))
	}
	if to == InvoiceStatusPaid {
		return shared.NewValidationError(CodeDirectPaidForbidden,
			"An invoice becomes paid only when recorded payments cover its total")
	}
	if from == to {
		return nil
	}
	if to == InvoiceStatusPartial {
		return shared.NewValidationError(CodeInvalidTransition,
			"An invoice becomes partial only when payments are recorded against it")
	}
	if !from.CanTransitionTo(to) {
		return shared.NewValidationError(CodeInvalidTransition,
			fmt.Sprintf("Cannot change invoice status from %s to %s", from, to))
	}
	return nil
}
