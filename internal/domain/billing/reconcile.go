package billing

import (
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Settlement is the payment-derived state of an invoice
type Settlement struct {
	AmountPaid decimal.Decimal
	// BalanceDue is total - amountPaid and may be negative; Invoice clamps it
	// at zero before the value is stored.
	BalanceDue decimal.Decimal
	Status     InvoiceStatus
}

// Settle recomputes amount paid, balance and status from a total and the sum
// of active payments.
//
//	balance <= 0 and paid > 0  -> paid
//	balance > 0  and paid > 0  -> partial
//	otherwise                  -> previous status
//
// An invoice left with no payments after being paid or partial falls back to
// sent, or draft when it was never sent, so that paid and partial always
// reflect the ledger.
func Settle(total, amountPaid decimal.Decimal, previous InvoiceStatus, wasSent bool) Settlement {
	balance := total.Sub(amountPaid)
	status := previous

	switch {
	case previous == InvoiceStatusCancelled:
		// cancelled invoices carry no payments and never change status here
	case balance.Sign() <= 0 && amountPaid.IsPositive():
		status = InvoiceStatusPaid
	case amountPaid.IsPositive() && balance.IsPositive():
		status = InvoiceStatusPartial
	case previous.IsPaymentDriven():
		if wasSent {
			status = InvoiceStatusSent
		} else {
			status = InvoiceStatusDraft
		}
	}

	return Settlement{
		AmountPaid: amountPaid,
		BalanceDue: balance,
		Status:     status,
	}
}

// EditPlan describes what applying new items to an invoice would do
type EditPlan struct {
	Totals     Totals
	AmountPaid decimal.Decimal
	// Excess is amountPaid - newTotal when positive, zero otherwise
	Excess decimal.Decimal
}

// NeedsPaymentRemoval is true when recorded payments exceed the new total
func (p EditPlan) NeedsPaymentRemoval() bool {
	return p.Excess.IsPositive()
}

// PlanEdit computes new totals for an edit and the payment excess it would create
func PlanEdit(items []LineItemInput, taxRate decimal.Decimal, payments []Payment) (EditPlan, error) {
	totals, err := CalculateTotals(items, taxRate)
	if err != nil {
		return EditPlan{}, err
	}

	paid := SumPayments(payments)
	excess := paid.Sub(totals.Total)
	if excess.IsNegative() {
		excess = decimal.Zero
	}

	return EditPlan{
		Totals:     totals,
		AmountPaid: paid,
		Excess:     excess,
	}, nil
}

// SelectRemovals validates the payments chosen for removal during an edit and
// splits the ledger into kept and removed entries. The selection must cover
// the excess so that the remaining payments do not exceed the new total.
func SelectRemovals(plan EditPlan, payments []Payment, removeIDs []uuid.UUID) (kept, removed []Payment, err error) {
	byID := make(map[uuid.UUID]bool, len(removeIDs))
	for _, id := range removeIDs {
		byID[id] = true
	}

	for _, p := range payments {
		if byID[p.ID] {
			removed = append(removed, p)
			delete(byID, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	if len(byID) > 0 {
		return nil, nil, shared.NewValidationError(CodeRemovalUnknownPayment,
			"Selected payments do not belong to this invoice")
	}

	removedSum := SumPayments(removed)
	remaining := SumPayments(kept)
	if removedSum.LessThan(plan.Excess) || remaining.GreaterThan(plan.Totals.Total) {
		return nil, nil, shared.NewValidationError(CodeRemovalInsufficient,
			"Selected payments do not cover the amount by which payments exceed the new total").
			WithDetails(map[string]string{
				"excess":   plan.Excess.StringFixed(2),
				"selected": removedSum.StringFixed(2),
			})
	}
	return kept, removed, nil
}
