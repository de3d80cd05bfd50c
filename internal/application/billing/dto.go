package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// ==================== Invoice DTOs ====================

// LineItemInput is one requested invoice line
type LineItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// CreateInvoiceRequest represents a request to create an invoice
type CreateInvoiceRequest struct {
	ClientID  uuid.UUID       `json:"client_id"`
	IssueDate *time.Time      `json:"issue_date"`
	DueDate   *time.Time      `json:"due_date"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Notes     string          `json:"notes"`
	Items     []LineItemInput `json:"items"`
}

// UpdateInvoiceRequest replaces an invoice's items, tax rate and header fields
type UpdateInvoiceRequest struct {
	Items     []LineItemInput `json:"items"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	IssueDate *time.Time      `json:"issue_date"`
	DueDate   *time.Time      `json:"due_date"`
	Notes     *string         `json:"notes"`
}

// ConfirmEditRequest applies an edit together with the payments chosen for removal
type ConfirmEditRequest struct {
	UpdateInvoiceRequest
	RemovePaymentIDs []uuid.UUID `json:"remove_payment_ids"`
}

// InvoiceListFilter narrows invoice listings
type InvoiceListFilter struct {
	Status   string     `form:"status"`
	ClientID *uuid.UUID `form:"client_id"`
	Search   string     `form:"search"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir"`
}

// InvoiceItemResponse is the API shape of an invoice line
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	SortOrder   int             `json:"sort_order"`
}

// InvoiceResponse is the API shape of an invoice
type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	TenantID      uuid.UUID             `json:"tenant_id"`
	InvoiceNumber string                `json:"invoice_number"`
	ClientID      uuid.UUID             `json:"client_id"`
	Status        string                `json:"status"`
	IssueDate     time.Time             `json:"issue_date"`
	DueDate       *time.Time            `json:"due_date,omitempty"`
	TaxRate       decimal.Decimal       `json:"tax_rate"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	TaxAmount     decimal.Decimal       `json:"tax_amount"`
	Total         decimal.Decimal       `json:"total"`
	AmountPaid    decimal.Decimal       `json:"amount_paid"`
	BalanceDue    decimal.Decimal       `json:"balance_due"`
	Notes         string                `json:"notes,omitempty"`
	Items         []InvoiceItemResponse `json:"items,omitempty"`
	SentAt        *time.Time            `json:"sent_at,omitempty"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
	CancelledAt   *time.Time            `json:"cancelled_at,omitempty"`
	CreatedBy     *uuid.UUID            `json:"created_by,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Version       int                   `json:"version"`
}

// ToInvoiceResponse converts a domain Invoice to InvoiceResponse
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      item.Amount,
			SortOrder:   item.SortOrder,
		}
	}
	return InvoiceResponse{
		ID:            inv.ID,
		TenantID:      inv.TenantID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		Status:        string(inv.Status),
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		TaxRate:       inv.TaxRate,
		Subtotal:      inv.Subtotal,
		TaxAmount:     inv.TaxAmount,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		BalanceDue:    inv.BalanceDue,
		Notes:         inv.Notes,
		Items:         items,
		SentAt:        inv.SentAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CreatedBy:     inv.CreatedBy,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		Version:       inv.Version,
	}
}

// ToInvoiceResponses converts a list of invoices
func ToInvoiceResponses(invoices []billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceResponse(&invoices[i])
	}
	return out
}

// ==================== Payment DTOs ====================

// RecordPaymentRequest represents a request to record a payment
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
}

// PaymentResponse is the API shape of a payment
type PaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	RecordedBy  *uuid.UUID      `json:"recorded_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse
func ToPaymentResponse(p *billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		InvoiceID:   p.InvoiceID,
		Amount:      p.Amount,
		PaymentDate: p.PaymentDate,
		Method:      string(p.Method),
		Reference:   p.Reference,
		Notes:       p.Notes,
		RecordedBy:  p.RecordedBy,
		CreatedAt:   p.CreatedAt,
	}
}

// ToPaymentResponses converts a ledger
func ToPaymentResponses(payments []billing.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out
}

// ==================== Client DTOs ====================

// ClientRequest creates or replaces a client
type ClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (r ClientRequest) details() billing.ClientDetails {
	return billing.ClientDetails{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
		Notes:   r.Notes,
	}
}

// ClientResponse is the API shape of a client
type ClientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// ToClientResponse converts a domain Client to ClientResponse
func ToClientResponse(c *billing.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Version:   c.Version,
	}
}

// ClientBalanceResponse is the API shape of a client's invoice summary
type ClientBalanceResponse struct {
	ClientID       uuid.UUID       `json:"client_id"`
	InvoiceCount   int             `json:"invoice_count"`
	CountsByStatus map[string]int  `json:"counts_by_status"`
	TotalInvoiced  decimal.Decimal `json:"total_invoiced"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}

// ToClientBalanceResponse converts a ClientBalance
func ToClientBalanceResponse(b billing.ClientBalance) ClientBalanceResponse {
	counts := make(map[string]int, len(b.CountsByStatus))
	for s, n := range b.CountsByStatus {
		counts[string(s)] = n
	}
	return ClientBalanceResponse{
		ClientID:       b.ClientID,
		InvoiceCount:   b.InvoiceCount,
		CountsByStatus: counts,
		TotalInvoiced:  b.TotalInvoiced,
		TotalPaid:      b.TotalPaid,
		Outstanding:    b.Outstanding,
	}
}

// ==================== Results ====================

// InvoiceResult is returned by invoice mutations. ClientBalance is recomputed
// in the same transaction; it is nil when nothing changed.
type InvoiceResult struct {
	Invoice       InvoiceResponse        `json:"invoice"`
	ClientBalance *ClientBalanceResponse `json:"client_balance,omitempty"`
}

// PaymentResult is returned by payment mutations
type PaymentResult struct {
	Payment       PaymentResponse        `json:"payment"`
	Invoice       InvoiceResponse        `json:"invoice"`
	ClientBalance *ClientBalanceResponse `json:"client_balance,omitempty"`
}

// EditResult is the outcome of ProposeEdit: either the edit was applied, or
// the caller must choose payments to remove and call ConfirmEdit.
type EditResult struct {
	Applied        bool
	Result         *InvoiceResult
	Reconciliation *billing.ReconciliationRequiredError
}

func toLineItems(in []LineItemInput) []billing.LineItemInput {
	out := make([]billing.LineItemInput, len(in))
	for i, item := range in {
		out[i] = billing.LineItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
		}
	}
	return out
}

func (r UpdateInvoiceRequest) toEdit() billing.InvoiceEdit {
	return billing.InvoiceEdit{
		Items:     toLineItems(r.Items),
		TaxRate:   r.TaxRate,
		IssueDate: r.IssueDate,
		DueDate:   r.DueDate,
		Notes:     r.Notes,
	}
}

func balanceResponse(b billing.ClientBalance) *ClientBalanceResponse {
	r := ToClientBalanceResponse(b)
	return &r
}
