package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

// InvoiceSender renders invoice emails and hands them to a Sender
type InvoiceSender struct {
	sender    Sender
	fromEmail string
	fromName  string
}

// NewInvoiceSender creates a new InvoiceSender
func NewInvoiceSender(sender Sender, cfg config.EmailConfig) *InvoiceSender {
	return &InvoiceSender{
		sender:    sender,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// SendInvoice implements billing.InvoiceMailSender
func (s *InvoiceSender) SendInvoice(ctx context.Context, m appbilling.InvoiceMail) error {
	if m.To == "" {
		return ErrNoRecipients
	}
	if m.FromName == "" {
		m.FromName = s.fromName
	}
	subject, body := RenderInvoice(m)
	return s.sender.Send(ctx, Message{
		From:    mail.Address{Name: m.FromName, Address: s.fromEmail},
		To:      []string{m.To},
		ReplyTo: m.ReplyTo,
		Subject: subject,
		Body:    body,
	})
}

var _ appbilling.InvoiceMailSender = (*InvoiceSender)(nil)

// RenderInvoice returns the subject and plain-text body of an invoice email.
// Amounts are formatted for the organization locale in the currency the
// locale implies, falling back to en-US and USD.
func RenderInvoice(m appbilling.InvoiceMail) (subject, body string) {
	tag := parseLocale(m.Locale)
	cur := currencyFor(tag)
	p := message.NewPrinter(tag)

	if m.Reminder {
		subject = fmt.Sprintf("Reminder: invoice %s from %s", m.InvoiceNumber, m.FromName)
	} else {
		subject = fmt.Sprintf("Invoice %s from %s", m.InvoiceNumber, m.FromName)
	}

	var b strings.Builder
	if m.ClientName != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", m.ClientName)
	} else {
		b.WriteString("Hello,\n\n")
	}
	if m.Reminder {
		fmt.Fprintf(&b, "This is a reminder about invoice %s.\n\n", m.InvoiceNumber)
	} else {
		fmt.Fprintf(&b, "Please find the details of invoice %s below.\n\n", m.InvoiceNumber)
	}
	fmt.Fprintf(&b, "Invoice number: %s\n", m.InvoiceNumber)
	fmt.Fprintf(&b, "Issue date:     %s\n", m.IssueDate.Format(dateLayout))
	if m.DueDate != nil {
		fmt.Fprintf(&b, "Due date:       %s\n", m.DueDate.Format(dateLayout))
	}
	fmt.Fprintf(&b, "Total:          %s\n", formatAmount(p, cur, m.Total))
	fmt.Fprintf(&b, "Balance due:    %s\n", formatAmount(p, cur, m.BalanceDue))
	b.WriteString("\n")
	if m.ReplyTo != "" {
		fmt.Fprintf(&b, "Questions? Reply to this email or write to %s.\n\n", m.ReplyTo)
	}
	b.WriteString("Thank you,\n")
	b.WriteString(m.FromName)
	b.WriteString("\n")

	return subject, b.String()
}

func parseLocale(locale string) language.Tag {
	if locale == "" {
		return language.AmericanEnglish
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

func currencyFor(tag language.Tag) currency.Unit {
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		return currency.USD
	}
	return unit
}

func formatAmount(p *message.Printer, cur currency.Unit, amount decimal.Decimal) string {
	return p.Sprint(currency.Symbol(cur.Amount(amount.InexactFloat64())))
}
