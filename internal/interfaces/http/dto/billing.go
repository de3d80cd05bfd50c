package dto

import (
	"time"

	"github.com/google/uuid"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// LineItemRequest is one invoice line in a request body
type LineItemRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	Rate        decimal.Decimal `json:"rate"`
}

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	ClientID  string            `json:"client_id" binding:"required,uuid"`
	IssueDate string            `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   string            `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	TaxRate   decimal.Decimal   `json:"tax_rate"`
	Notes     string            `json:"notes" binding:"max=2000"`
	Items     []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateInvoiceRequest is the body of PUT /invoices/:id
type UpdateInvoiceRequest struct {
	IssueDate string            `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   string            `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	TaxRate   decimal.Decimal   `json:"tax_rate"`
	Notes     *string           `json:"notes" binding:"omitempty,max=2000"`
	Items     []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ConfirmEditRequest is the body of PUT /invoices/:id/confirm
type ConfirmEditRequest struct {
	UpdateInvoiceRequest
	RemovePaymentIDs []string `json:"remove_payment_ids" binding:"dive,uuid"`
}

// UpdateStatusRequest is the body of POST /invoices/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,invoice_status"`
}

// RecordPaymentRequest is the body of POST /invoices/:id/payments
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	PaymentDate string          `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	Method      string          `json:"method" binding:"required,payment_method"`
	Reference   string          `json:"reference" binding:"max=100"`
	Notes       string          `json:"notes" binding:"max=1000"`
}

// ClientRequest is the body of POST /clients and PUT /clients/:id
type ClientRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"omitempty,email,max=254"`
	Phone   string `json:"phone" binding:"max=50"`
	Address string `json:"address" binding:"max=500"`
	Notes   string `json:"notes" binding:"max=2000"`
}

// InvoiceListQuery is the query string of GET /invoices
type InvoiceListQuery struct {
	ListRequest
	Status   string `form:"status" binding:"omitempty,invoice_status"`
	ClientID string `form:"client_id" binding:"omitempty,uuid"`
}

// ClientListQuery is the query string of GET /clients
type ClientListQuery struct {
	ListRequest
}

// EditResponse is returned by PUT /invoices/:id when the edit was applied
type EditResponse struct {
	Applied bool `json:"applied"`
	appbilling.InvoiceResult
}

// DeleteInvoiceResponse is returned by DELETE /invoices/:id
type DeleteInvoiceResponse struct {
	ID            uuid.UUID                         `json:"id"`
	ClientBalance *appbilling.ClientBalanceResponse `json:"client_balance,omitempty"`
}

// ParseDate parses an optional YYYY-MM-DD date as midnight UTC
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toLineItems(items []LineItemRequest) []appbilling.LineItemInput {
	out := make([]appbilling.LineItemInput, len(items))
	for i, item := range items {
		out[i] = appbilling.LineItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
		}
	}
	return out
}

// ToApp converts the request into the service request
func (r CreateInvoiceRequest) ToApp() (appbilling.CreateInvoiceRequest, error) {
	clientID, err := uuid.Parse(r.ClientID)
	if err != nil {
		return appbilling.CreateInvoiceRequest{}, err
	}
	issue, err := ParseDate(r.IssueDate)
	if err != nil {
		return appbilling.CreateInvoiceRequest{}, err
	}
	due, err := ParseDate(r.DueDate)
	if err != nil {
		return appbilling.CreateInvoiceRequest{}, err
	}
	return appbilling.CreateInvoiceRequest{
		ClientID:  clientID,
		IssueDate: issue,
		DueDate:   due,
		TaxRate:   r.TaxRate,
		Notes:     r.Notes,
		Items:     toLineItems(r.Items),
	}, nil
}

// ToApp converts the request into the service request
func (r UpdateInvoiceRequest) ToApp() (appbilling.UpdateInvoiceRequest, error) {
	issue, err := ParseDate(r.IssueDate)
	if err != nil {
		return appbilling.UpdateInvoiceRequest{}, err
	}
	due, err := ParseDate(r.DueDate)
	if err != nil {
		return appbilling.UpdateInvoiceRequest{}, err
	}
	return appbilling.UpdateInvoiceRequest{
		Items:     toLineItems(r.Items),
		TaxRate:   r.TaxRate,
		IssueDate: issue,
		DueDate:   due,
		Notes:     r.Notes,
	}, nil
}

// ToApp converts the request into the service request
func (r ConfirmEditRequest) ToApp() (appbilling.ConfirmEditRequest, error) {
	edit, err := r.UpdateInvoiceRequest.ToApp()
	if err != nil {
		return appbilling.ConfirmEditRequest{}, err
	}
	ids := make([]uuid.UUID, 0, len(r.RemovePaymentIDs))
	for _, s := range r.RemovePaymentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return appbilling.ConfirmEditRequest{}, err
		}
		ids = append(ids, id)
	}
	return appbilling.ConfirmEditRequest{UpdateInvoiceRequest: edit, RemovePaymentIDs: ids}, nil
}

// ToApp converts the request into the service request
func (r RecordPaymentRequest) ToApp() (appbilling.RecordPaymentRequest, error) {
	date, err := ParseDate(r.PaymentDate)
	if err != nil {
		return appbilling.RecordPaymentRequest{}, err
	}
	return appbilling.RecordPaymentRequest{
		Amount:      r.Amount,
		PaymentDate: date,
		Method:      r.Method,
		Reference:   r.Reference,
		Notes:       r.Notes,
	}, nil
}

// ToApp converts the request into the service request
func (r ClientRequest) ToApp() appbilling.ClientRequest {
	return appbilling.ClientRequest{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
		Notes:   r.Notes,
	}
}

// ToFilter converts the query into the service filter
func (q InvoiceListQuery) ToFilter() appbilling.InvoiceListFilter {
	f := appbilling.InvoiceListFilter{
		Status:   q.Status,
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	}
	if id, err := uuid.Parse(q.ClientID); err == nil {
		f.ClientID = &id
	}
	return f
}

// ToFilter converts the query into the service filter
func (q ClientListQuery) ToFilter() appbilling.ClientListFilter {
	return appbilling.ClientListFilter{
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	}
}
