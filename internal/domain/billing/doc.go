// Package billing holds the invoicing domain: invoices and their line items,
// the payment ledger, clients and the organization numbering settings.
//
// All financial fields of an Invoice (subtotal, tax, total, amount paid,
// balance due, status) are derived here and nowhere else:
//   - CalculateTotals derives subtotal/tax/total from line items and a tax rate.
//   - Settle derives amount paid, balance due and status from a payment sum.
//   - PlanEdit decides whether an edit needs payments removed first.
//   - the transition table in status.go governs user-driven status changes.
//
// Amounts keep full precision while being combined and are rounded half-up to
// two fractional digits when written onto an aggregate.
package billing
