package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(qty int, rate string) LineItemInput {
	return LineItemInput{Description: "Consulting", Quantity: qty, Rate: dec(rate)}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected a DomainError, got %T", err)
	require.Equal(t, code, de.Code)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestInvoice(t *testing.T, taxRate string, items ...LineItemInput) *Invoice {
	t.Helper()
	inv, err := NewInvoice(NewInvoiceParams{
		TenantID:      uuid.New(),
		ClientID:      uuid.New(),
		CreatedBy:     uuid.New(),
		InvoiceNumber: "INV-2026-0001",
		IssueDate:     testNow,
		TaxRate:       dec(taxRate),
		Items:         items,
	})
	require.NoError(t, err)
	return inv
}

func newTestPayment(t *testing.T, inv *Invoice, amount string) *Payment {
	t.Helper()
	p, err := NewPayment(inv.TenantID, inv.ID, dec(amount), testNow, PaymentMethodBankTransfer, "", "", nil)
	require.NoError(t, err)
	return p
}

// pay records a payment against the invoice and returns the new ledger
func pay(t *testing.T, inv *Invoice, ledger []Payment, amount string) []Payment {
	t.Helper()
	updated, err := inv.RecordPayment(newTestPayment(t, inv, amount), ledger, nil, testNow)
	require.NoError(t, err)
	return updated
}
