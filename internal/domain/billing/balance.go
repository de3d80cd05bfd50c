package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClientBalance is the read model of a client's invoices
type ClientBalance struct {
	ClientID       uuid.UUID             `json:"client_id"`
	InvoiceCount   int                   `json:"invoice_count"`
	CountsByStatus map[InvoiceStatus]int `json:"counts_by_status"`
	TotalInvoiced  decimal.Decimal       `json:"total_invoiced"`
	TotalPaid      decimal.Decimal       `json:"total_paid"`
	Outstanding    decimal.Decimal       `json:"outstanding"`
}

// AggregateClientBalance rolls up a client's invoices. Cancelled invoices are
// counted by status but contribute nothing to the money totals.
func AggregateClientBalance(clientID uuid.UUID, invoices []Invoice) ClientBalance {
	b := ClientBalance{
		ClientID:       clientID,
		CountsByStatus: make(map[InvoiceStatus]int, len(AllInvoiceStatuses)),
		TotalInvoiced:  decimal.Zero,
		TotalPaid:      decimal.Zero,
	}
	for _, s := range AllInvoiceStatuses {
		b.CountsByStatus[s] = 0
	}

	for i := range invoices {
		inv := &invoices[i]
		if inv.ClientID != clientID {
			continue
		}
		b.InvoiceCount++
		b.CountsByStatus[inv.Status]++
		if inv.IsCancelled() {
			continue
		}
		b.TotalInvoiced = b.TotalInvoiced.Add(inv.Total)
		b.TotalPaid = b.TotalPaid.Add(inv.AmountPaid)
	}
	b.Outstanding = b.TotalInvoiced.Sub(b.TotalPaid)
	return b
}
