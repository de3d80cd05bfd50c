package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceStatus_IsValid(t *testing.T) {
	for _, s := range AllInvoiceStatuses {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, InvoiceStatus("void").IsValid())
	assert.False(t, InvoiceStatus("").IsValid())
}

func TestValidateUserTransition(t *testing.T) {
	tests := []struct {
		from InvoiceStatus
		to   InvoiceStatus
		code string
	}{
		{InvoiceStatusDraft, InvoiceStatusSent, ""},
		{InvoiceStatusDraft, InvoiceStatusCancelled, ""},
		{InvoiceStatusDraft, InvoiceStatusOverdue, CodeInvalidTransition},
		{InvoiceStatusDraft, InvoiceStatusPartial, CodeInvalidTransition},
		{InvoiceStatusDraft, InvoiceStatusPaid, CodeDirectPaidForbidden},
		{InvoiceStatusSent, InvoiceStatusSent, ""},
		{InvoiceStatusSent, InvoiceStatusOverdue, ""},
		{InvoiceStatusSent, InvoiceStatusDraft, CodeInvalidTransition},
		{InvoiceStatusSent, InvoiceStatusPaid, CodeDirectPaidForbidden},
		{InvoiceStatusOverdue, InvoiceStatusSent, ""},
		{InvoiceStatusOverdue, InvoiceStatusCancelled, ""},
		{InvoiceStatusPartial, InvoiceStatusPartial, ""},
		{InvoiceStatusPartial, InvoiceStatusCancelled, ""},
		{InvoiceStatusPartial, InvoiceStatusOverdue, CodeInvalidTransition},
		{InvoiceStatusPartial, InvoiceStatusPaid, CodeDirectPaidForbidden},
		{InvoiceStatusPaid, InvoiceStatusPaid, CodeDirectPaidForbidden},
		{InvoiceStatusPaid, InvoiceStatusCancelled, CodeInvalidTransition},
		{InvoiceStatusCancelled, InvoiceStatusCancelled, ""},
		{InvoiceStatusCancelled, InvoiceStatusDraft, CodeInvalidTransition},
		{InvoiceStatusCancelled, InvoiceStatusSent, CodeInvalidTransition},
		{InvoiceStatusDraft, InvoiceStatus("archived"), CodeInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateUserTransition(tt.from, tt.to)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			requireCode(t, err, tt.code)
		})
	}
}

func TestInvoiceStatus_CanTransitionTo_NeverTargetsPaymentDriven(t *testing.T) {
	for _, from := range AllInvoiceStatuses {
		assert.False(t, from.CanTransitionTo(InvoiceStatusPaid), from)
		assert.False(t, from.CanTransitionTo(InvoiceStatusPartial), from)
	}
	assert.True(t, InvoiceStatusCancelled.IsTerminal())
	assert.True(t, InvoiceStatusPaid.IsPaymentDriven())
	assert.False(t, InvoiceStatusCancelled.AcceptsPayments())
}
