package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceItem is a line on an invoice. Items are owned by the invoice and
// replaced as a whole on every edit.
type InvoiceItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	SortOrder   int             `json:"sort_order"`
}

// Invoice is the aggregate root for a client invoice.
//
// Invariants for a non-cancelled invoice:
//   - Total == Subtotal + TaxAmount
//   - AmountPaid == sum of the invoice's payments
//   - BalanceDue == max(0, Total - AmountPaid)
//   - Status == paid    iff BalanceDue == 0 and AmountPaid > 0
//   - Status == partial iff 0 < AmountPaid < Total
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	Status        InvoiceStatus   `json:"status"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Notes         string          `json:"notes,omitempty"`
	Items         []InvoiceItem   `json:"items"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

// NewInvoiceParams groups the inputs of NewInvoice
type NewInvoiceParams struct {
	TenantID      uuid.UUID
	ClientID      uuid.UUID
	CreatedBy     uuid.UUID
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       *time.Time
	TaxRate       decimal.Decimal
	Notes         string
	Items         []LineItemInput
}

// NewInvoice creates a draft invoice with computed totals
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.ClientID == uuid.Nil {
		return nil, shared.NewValidationError(CodeInvalidClient, "Client ID cannot be empty")
	}
	if strings.TrimSpace(p.InvoiceNumber) == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if p.IssueDate.IsZero() {
		p.IssueDate = time.Now()
	}
	if p.DueDate != nil && p.DueDate.Before(truncateDay(p.IssueDate)) {
		return nil, shared.NewValidationError(CodeInvalidDates, "Due date cannot be before the issue date")
	}

	totals, err := CalculateTotals(p.Items, p.TaxRate)
	if err != nil {
		return nil, err
	}

	root := shared.NewTenantAggregateRoot(p.TenantID)
	if p.CreatedBy != uuid.Nil {
		root.SetCreatedBy(p.CreatedBy)
	}

	inv := &Invoice{
		TenantAggregateRoot: root,
		InvoiceNumber:       p.InvoiceNumber,
		ClientID:            p.ClientID,
		Status:              InvoiceStatusDraft,
		IssueDate:           p.IssueDate,
		DueDate:             p.DueDate,
		TaxRate:             p.TaxRate,
		Notes:               strings.TrimSpace(p.Notes),
		AmountPaid:          decimal.Zero,
	}
	inv.applyTotals(p.Items, totals)
	inv.BalanceDue = inv.Total

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv, actorOf(p.CreatedBy)))
	return inv, nil
}

// Snapshot captures the financial state of the invoice for audit records
func (inv *Invoice) Snapshot() InvoiceSnapshot {
	return InvoiceSnapshot{
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.Status,
		TaxRate:       inv.TaxRate.String(),
		Subtotal:      inv.Subtotal.StringFixed(2),
		TaxAmount:     inv.TaxAmount.StringFixed(2),
		Total:         inv.Total.StringFixed(2),
		AmountPaid:    inv.AmountPaid.StringFixed(2),
		BalanceDue:    inv.BalanceDue.StringFixed(2),
		ItemCount:     len(inv.Items),
	}
}

// HasBeenSent returns true once the invoice has been sent at least once
func (inv *Invoice) HasBeenSent() bool {
	return inv.SentAt != nil
}

// IsCancelled returns true if the invoice is cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// CanDelete returns true for invoices that carry no financial history worth keeping
func (inv *Invoice) CanDelete() bool {
	return inv.Status == InvoiceStatusDraft || inv.Status == InvoiceStatusCancelled
}

// Reconcile recomputes AmountPaid, BalanceDue and Status from the ledger.
// Every mutation that changes totals or payments ends here.
func (inv *Invoice) Reconcile(payments []Payment, now time.Time) {
	if inv.IsCancelled() {
		inv.AmountPaid = decimal.Zero
		inv.BalanceDue = inv.Total
		return
	}

	s := Settle(inv.Total, SumPayments(payments), inv.Status, inv.HasBeenSent())
	inv.AmountPaid = s.AmountPaid.Round(2)
	inv.BalanceDue = valueobject.NewMoney(s.BalanceDue).ClampZero().Rounded().Amount()

	if s.Status == InvoiceStatusPaid && inv.Status != InvoiceStatusPaid {
		inv.PaidAt = &now
	}
	if s.Status != InvoiceStatusPaid {
		inv.PaidAt = nil
	}
	inv.Status = s.Status
}

// RecordPayment checks a new payment against the current balance, appends it
// to the given ledger and reconciles. The returned ledger includes the payment.
func (inv *Invoice) RecordPayment(payment *Payment, ledger []Payment, actor *uuid.UUID, now time.Time) ([]Payment, error) {
	if !inv.Status.AcceptsPayments() {
		return nil, shared.NewValidationError(CodeInvoiceCancelled, "Payments cannot be recorded on a cancelled invoice")
	}
	if payment.InvoiceID != inv.ID || payment.TenantID != inv.TenantID {
		return nil, shared.NewValidationError(CodeInvalidAmount, "Payment does not belong to this invoice")
	}

	// balance comes from the ledger passed in, not the stored BalanceDue column
	balance := inv.Total.Sub(SumPayments(ledger))
	if payment.Amount.GreaterThan(balance) {
		return nil, shared.NewValidationError(CodeOverpayment,
			fmt.Sprintf("Payment amount %s exceeds balance due %s",
				valueobject.NewMoney(payment.Amount), valueobject.NewMoney(balance).ClampZero()))
	}

	before := inv.Snapshot()
	updated := append(append([]Payment(nil), ledger...), *payment)
	inv.Reconcile(updated, now)
	inv.touch(now)

	inv.AddDomainEvent(NewPaymentRecordedEvent(inv, payment, before, actor))
	return updated, nil
}

// RemovePayment drops a payment from the ledger and reconciles.
// The returned ledger excludes the payment.
func (inv *Invoice) RemovePayment(paymentID uuid.UUID, ledger []Payment, actor *uuid.UUID, now time.Time) ([]Payment, *Payment, error) {
	var removed *Payment
	kept := make([]Payment, 0, len(ledger))
	for i := range ledger {
		if ledger[i].ID == paymentID {
			p := ledger[i]
			removed = &p
			continue
		}
		kept = append(kept, ledger[i])
	}
	if removed == nil {
		return nil, nil, ErrPaymentNotFound
	}

	before := inv.Snapshot()
	inv.Reconcile(kept, now)
	inv.touch(now)

	inv.AddDomainEvent(NewPaymentDeletedEvent(inv, removed, before, actor))
	return kept, removed, nil
}

// ApplyEdit replaces items, tax rate and header fields using a plan produced
// by PlanEdit. kept is the ledger after any confirmed removals; it must not
// exceed the new total.
func (inv *Invoice) ApplyEdit(edit InvoiceEdit, plan EditPlan, kept []Payment, removed []Payment, actor *uuid.UUID, now time.Time) error {
	if inv.IsCancelled() {
		return shared.NewValidationError(CodeInvoiceCancelled, "A cancelled invoice cannot be edited")
	}
	if SumPayments(kept).GreaterThan(plan.Totals.Total) {
		return NewReconciliationRequiredError(kept, SumPayments(kept).Sub(plan.Totals.Total), plan.Totals.Total)
	}
	issueDate := inv.IssueDate
	if edit.IssueDate != nil {
		issueDate = *edit.IssueDate
	}
	dueDate := inv.DueDate
	if edit.DueDate != nil {
		dueDate = edit.DueDate
	}
	if dueDate != nil && dueDate.Before(truncateDay(issueDate)) {
		return shared.NewValidationError(CodeInvalidDates, "Due date cannot be before the issue date")
	}

	before := inv.Snapshot()
	inv.IssueDate = issueDate
	inv.DueDate = dueDate
	if edit.Notes != nil {
		inv.Notes = strings.TrimSpace(*edit.Notes)
	}
	inv.TaxRate = edit.TaxRate
	inv.applyTotals(edit.Items, plan.Totals)
	inv.Reconcile(kept, now)
	inv.touch(now)

	removedIDs := make([]uuid.UUID, 0, len(removed))
	for _, p := range removed {
		removedIDs = append(removedIDs, p.ID)
	}
	inv.AddDomainEvent(NewInvoiceUpdatedEvent(inv, before, removedIDs, actor))
	return nil
}

// ChangeStatus applies a user-requested status change. It returns false when
// the target equals the current status (nothing changed, no event raised).
// Cancelling requires the caller to purge the ledger in the same transaction.
func (inv *Invoice) ChangeStatus(target InvoiceStatus, actor *uuid.UUID, now time.Time) (bool, error) {
	if err := ValidateUserTransition(inv.Status, target); err != nil {
		return false, err
	}
	if inv.Status == target {
		return false, nil
	}

	before := inv.Snapshot()
	previous := inv.Status
	firstSend := false
	inv.Status = target

	switch target {
	case InvoiceStatusSent:
		if inv.SentAt == nil {
			inv.SentAt = &now
			firstSend = true
		}
	case InvoiceStatusCancelled:
		inv.AmountPaid = decimal.Zero
		inv.BalanceDue = inv.Total
		inv.PaidAt = nil
		inv.CancelledAt = &now
	}
	inv.touch(now)

	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, previous, before, actor))
	switch target {
	case InvoiceStatusSent:
		inv.AddDomainEvent(NewInvoiceSentEvent(inv, firstSend))
	case InvoiceStatusCancelled:
		inv.AddDomainEvent(NewInvoiceCancelledEvent(inv, previous))
	}
	return true, nil
}

// IsOverdueAt reports whether a sent invoice is past its due date
func (inv *Invoice) IsOverdueAt(asOf time.Time) bool {
	if inv.DueDate == nil || inv.Status != InvoiceStatusSent {
		return false
	}
	return inv.DueDate.Before(truncateDay(asOf))
}

// MarkDeleted raises the deletion event. The repository removes the rows.
func (inv *Invoice) MarkDeleted(actor *uuid.UUID) error {
	if !inv.CanDelete() {
		return shared.NewValidationError(CodeInvoiceNotDeletable, "Only draft or cancelled invoices can be deleted")
	}
	inv.AddDomainEvent(NewInvoiceDeletedEvent(inv, actor))
	return nil
}

func (inv *Invoice) applyTotals(items []LineItemInput, totals Totals) {
	inv.Items = make([]InvoiceItem, len(items))
	for i, item := range items {
		inv.Items[i] = InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      totals.LineAmounts[i],
			SortOrder:   i,
		}
	}
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.Total = totals.Total
}

func (inv *Invoice) touch(now time.Time) {
	inv.UpdatedAt = now
	inv.IncrementVersion()
}

// InvoiceEdit is a full replacement of an invoice's editable content
type InvoiceEdit struct {
	Items     []LineItemInput
	TaxRate   decimal.Decimal
	IssueDate *time.Time
	DueDate   *time.Time
	Notes     *string
}

// FormatInvoiceNumber renders {prefix}-{year}-{sequence} with the sequence
// zero-padded to width digits.
func FormatInvoiceNumber(prefix string, year int, sequence int64, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, width, sequence)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func actorOf(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
