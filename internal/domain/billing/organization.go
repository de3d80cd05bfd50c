package billing

import (
	"github.com/google/uuid"
)

// DefaultInvoicePrefix is used when an organization has not chosen one
const DefaultInvoicePrefix = "INV"

// Organization is the tenant record as seen by billing. Its ID is the tenant ID.
// InvoiceNextNumber is only advanced through OrganizationRepository.AllocateInvoiceNumber.
type Organization struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	InvoicePrefix     string    `json:"invoice_prefix"`
	InvoiceNextNumber int64     `json:"invoice_next_number"`
	Locale            string    `json:"locale,omitempty"`
}

// Prefix returns the configured prefix or the default
func (o *Organization) Prefix() string {
	if o.InvoicePrefix == "" {
		return DefaultInvoicePrefix
	}
	return o.InvoicePrefix
}
