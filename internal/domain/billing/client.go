package billing

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// Client is someone an organization bills. A client's financial summary is
// never stored; see AggregateClientBalance.
type Client struct {
	shared.TenantAggregateRoot
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// ClientDetails are the editable fields of a client
type ClientDetails struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Notes   string
}

// ClientSnapshot is the audit view of a client
type ClientSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// NewClient creates a client for a tenant
func NewClient(tenantID uuid.UUID, details ClientDetails, actor *uuid.UUID) (*Client, error) {
	details, err := normalizeClientDetails(details)
	if err != nil {
		return nil, err
	}

	root := shared.NewTenantAggregateRoot(tenantID)
	if actor != nil {
		root.SetCreatedBy(*actor)
	}
	c := &Client{TenantAggregateRoot: root}
	c.assign(details)

	c.AddDomainEvent(NewClientChangedEvent(EventTypeClientCreated, c, nil, actor))
	return c, nil
}

// Update replaces the client's details
func (c *Client) Update(details ClientDetails, actor *uuid.UUID) error {
	details, err := normalizeClientDetails(details)
	if err != nil {
		return err
	}

	before := c.Snapshot()
	c.assign(details)
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(NewClientChangedEvent(EventTypeClientUpdated, c, &before, actor))
	return nil
}

// MarkDeleted raises the deletion event once the caller has checked the
// client owns no invoices.
func (c *Client) MarkDeleted(invoiceCount int64, actor *uuid.UUID) error {
	if invoiceCount > 0 {
		return shared.NewConflictError(CodeClientHasInvoices, "A client with invoices cannot be deleted")
	}
	before := c.Snapshot()
	c.AddDomainEvent(NewClientChangedEvent(EventTypeClientDeleted, c, &before, actor))
	return nil
}

// Snapshot captures the client's fields for audit records
func (c *Client) Snapshot() ClientSnapshot {
	return ClientSnapshot{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
	}
}

func (c *Client) assign(d ClientDetails) {
	c.Name = d.Name
	c.Email = d.Email
	c.Phone = d.Phone
	c.Address = d.Address
	c.Notes = d.Notes
}

func normalizeClientDetails(d ClientDetails) (ClientDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.Notes = strings.TrimSpace(d.Notes)

	if d.Name == "" {
		return d, shared.NewValidationError("INVALID_CLIENT_NAME", "Client name cannot be empty")
	}
	if len(d.Name) > 200 {
		return d, shared.NewValidationError("INVALID_CLIENT_NAME", "Client name cannot exceed 200 characters")
	}
	if d.Email != "" {
		if _, err := mail.ParseAddress(d.Email); err != nil {
			return d, shared.NewValidationError("INVALID_EMAIL", "Client email is not a valid address")
		}
	}
	if len(d.Phone) > 50 {
		return d, shared.NewValidationError("INVALID_PHONE", "Phone cannot exceed 50 characters")
	}
	return d, nil
}
