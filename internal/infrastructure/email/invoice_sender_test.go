package email

import (
	"context"
	"testing"
	"time"

	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMail() appbilling.InvoiceMail {
	due := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	return appbilling.InvoiceMail{
		To:            "client@example.com",
		ClientName:    "Globex",
		FromName:      "Acme",
		ReplyTo:       "billing@acme.test",
		Locale:        "en-US",
		InvoiceNumber: "INV-2026-0007",
		IssueDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		DueDate:       &due,
		Total:         decimal.RequireFromString("1234.50"),
		BalanceDue:    decimal.RequireFromString("234.50"),
	}
}

func TestRenderInvoice_FirstSend(t *testing.T) {
	subject, body := RenderInvoice(sampleMail())

	assert.Equal(t, "Invoice INV-2026-0007 from Acme", subject)
	assert.Contains(t, body, "Hello Globex,")
	assert.Contains(t, body, "Issue date:     2026-03-31")
	assert.Contains(t, body, "Due date:       2026-04-30")
	assert.Contains(t, body, "$")
	assert.Contains(t, body, "1,234.50")
	assert.Contains(t, body, "234.50")
	assert.Contains(t, body, "billing@acme.test")
}

func TestRenderInvoice_Reminder(t *testing.T) {
	m := sampleMail()
	m.Reminder = true
	m.DueDate = nil

	subject, body := RenderInvoice(m)
	assert.Equal(t, "Reminder: invoice INV-2026-0007 from Acme", subject)
	assert.Contains(t, body, "This is a reminder")
	assert.NotContains(t, body, "Due date")
}

func TestRenderInvoice_LocalizedAmounts(t *testing.T) {
	m := sampleMail()
	m.Locale = "de-DE"

	_, body := RenderInvoice(m)
	assert.Contains(t, body, "€")
	assert.Contains(t, body, "1.234,50")
}

func TestRenderInvoice_UnknownLocaleFallsBack(t *testing.T) {
	m := sampleMail()
	m.Locale = "not a locale"

	_, body := RenderInvoice(m)
	assert.Contains(t, body, "1,234.50")
}

func TestInvoiceSender_SendInvoice(t *testing.T) {
	rec := &recordingSender{}
	s := NewInvoiceSender(rec, config.EmailConfig{FromEmail: "noreply@acme.test", FromName: "Invoicing"})

	require.NoError(t, s.SendInvoice(context.Background(), sampleMail()))
	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, []string{"client@example.com"}, msg.To)
	assert.Equal(t, "noreply@acme.test", msg.From.Address)
	assert.Equal(t, "Acme", msg.From.Name)
	assert.Equal(t, "billing@acme.test", msg.ReplyTo)

	m := sampleMail()
	m.FromName = ""
	require.NoError(t, s.SendInvoice(context.Background(), m))
	assert.Equal(t, "Invoicing", rec.sent[1].From.Name)

	m.To = ""
	assert.ErrorIs(t, s.SendInvoice(context.Background(), m), ErrNoRecipients)
}
