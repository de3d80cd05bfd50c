package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrganizationModel is the persistence model for a tenant's billing settings.
// Its ID is the tenant ID.
type OrganizationModel struct {
	BaseModel
	Name              string `gorm:"type:varchar(200);not null"`
	Email             string `gorm:"type:varchar(200)"`
	InvoicePrefix     string `gorm:"type:varchar(20);not null;default:'INV'"`
	InvoiceNextNumber int64  `gorm:"not null;default:1"`
	Locale            string `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (OrganizationModel) TableName() string {
	return "organizations"
}

// ToDomain converts the persistence model to a domain Organization
func (m *OrganizationModel) ToDomain() *billing.Organization {
	return &billing.Organization{
		ID:                m.ID,
		Name:              m.Name,
		Email:             m.Email,
		InvoicePrefix:     m.InvoicePrefix,
		InvoiceNextNumber: m.InvoiceNextNumber,
		Locale:            m.Locale,
	}
}

// OrganizationModelFromDomain creates a persistence model from a domain Organization
func OrganizationModelFromDomain(o *billing.Organization) *OrganizationModel {
	next := o.InvoiceNextNumber
	if next <= 0 {
		next = 1
	}
	return &OrganizationModel{
		BaseModel:         BaseModel{ID: o.ID},
		Name:              o.Name,
		Email:             o.Email,
		InvoicePrefix:     o.Prefix(),
		InvoiceNextNumber: next,
		Locale:            o.Locale,
	}
}

// ClientModel is the persistence model for the Client aggregate
type ClientModel struct {
	TenantAggregateModel
	Name    string `gorm:"type:varchar(200);not null"`
	Email   string `gorm:"type:varchar(200);index"`
	Phone   string `gorm:"type:varchar(50)"`
	Address string `gorm:"type:text"`
	Notes   string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *billing.Client {
	c := &billing.Client{
		Name:    m.Name,
		Email:   m.Email,
		Phone:   m.Phone,
		Address: m.Address,
		Notes:   m.Notes,
	}
	m.PopulateTenantAggregateRoot(&c.TenantAggregateRoot)
	return c
}

// ClientModelFromDomain creates a persistence model from a domain Client
func ClientModelFromDomain(c *billing.Client) *ClientModel {
	m := &ClientModel{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		Notes:   c.Notes,
	}
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate.
// tenant_id is declared here so the invoice number index can span it.
type InvoiceModel struct {
	AggregateModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_tenant_number,priority:1"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid"`
	InvoiceNumber string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_tenant_number,priority:2"`
	ClientID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status        string          `gorm:"type:varchar(20);not null;default:'draft';index"`
	IssueDate     time.Time       `gorm:"type:date;not null"`
	DueDate       *time.Time      `gorm:"type:date;index"`
	TaxRate       decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TaxAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	BalanceDue    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Notes         string          `gorm:"type:text"`
	SentAt        *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	Items         []InvoiceItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceItemModel is the persistence model for an invoice line
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    int             `gorm:"not null"`
	Rate        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	SortOrder   int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain Invoice. Items are
// included when they were loaded.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		InvoiceNumber: m.InvoiceNumber,
		ClientID:      m.ClientID,
		Status:        billing.InvoiceStatus(m.Status),
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		TaxRate:       m.TaxRate,
		Subtotal:      m.Subtotal,
		TaxAmount:     m.TaxAmount,
		Total:         m.Total,
		AmountPaid:    m.AmountPaid,
		BalanceDue:    m.BalanceDue,
		Notes:         m.Notes,
		SentAt:        m.SentAt,
		PaidAt:        m.PaidAt,
		CancelledAt:   m.CancelledAt,
	}
	if m.Items != nil {
		inv.Items = make([]billing.InvoiceItem, len(m.Items))
		for i, item := range m.Items {
			inv.Items[i] = item.ToDomain()
		}
	}
	return inv
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() billing.InvoiceItem {
	return billing.InvoiceItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		Description: m.Description,
		Quantity:    m.Quantity,
		Rate:        m.Rate,
		Amount:      m.Amount,
		SortOrder:   m.SortOrder,
	}
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice,
// items included.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		TenantID:      inv.TenantID,
		CreatedBy:     inv.CreatedBy,
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
		SentAt:        inv.SentAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		Items:         InvoiceItemModelsFromDomain(inv),
	}
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	return m
}

// InvoiceItemModelsFromDomain converts an invoice's lines
func InvoiceItemModelsFromDomain(inv *billing.Invoice) []InvoiceItemModel {
	items := make([]InvoiceItemModel, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceItemModel{
			ID:          item.ID,
			InvoiceID:   inv.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      item.Amount,
			SortOrder:   item.SortOrder,
		}
	}
	return items
}

// PaymentModel is the persistence model for a ledger entry
type PaymentModel struct {
	BaseModel
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentDate time.Time       `gorm:"type:date;not null"`
	Method      string          `gorm:"type:varchar(20);not null"`
	Reference   string          `gorm:"type:varchar(200)"`
	Notes       string          `gorm:"type:text"`
	RecordedBy  *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseEntity:  m.BaseModel.ToDomain(),
		TenantID:    m.TenantID,
		InvoiceID:   m.InvoiceID,
		Amount:      m.Amount,
		PaymentDate: m.PaymentDate,
		Method:      billing.PaymentMethod(m.Method),
		Reference:   m.Reference,
		Notes:       m.Notes,
		RecordedBy:  m.RecordedBy,
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		TenantID:    p.TenantID,
		InvoiceID:   p.InvoiceID,
		Amount:      p.Amount,
		PaymentDate: p.PaymentDate,
		Method:      string(p.Method),
		Reference:   p.Reference,
		Notes:       p.Notes,
		RecordedBy:  p.RecordedBy,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// AuditLogModel is one row of the audit trail
type AuditLogModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_logs_entity,priority:1"`
	EntityType string     `gorm:"type:varchar(50);not null;index:idx_audit_logs_entity,priority:2"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_logs_entity,priority:3"`
	Action     string     `gorm:"type:varchar(50);not null"`
	UserID     *uuid.UUID `gorm:"type:uuid"`
	EventID    uuid.UUID  `gorm:"type:uuid;not null"`
	Before     *string    `gorm:"type:jsonb"`
	After      *string    `gorm:"type:jsonb"`
	OccurredAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() billing.AuditEntry {
	e := billing.AuditEntry{
		ID:         m.ID,
		TenantID:   m.TenantID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		UserID:     m.UserID,
		EventID:    m.EventID,
		OccurredAt: m.OccurredAt,
	}
	if m.Before != nil {
		e.Before = []byte(*m.Before)
	}
	if m.After != nil {
		e.After = []byte(*m.After)
	}
	return e
}

// AuditLogModelFromDomain creates a persistence model from an AuditEntry
func AuditLogModelFromDomain(e *billing.AuditEntry) *AuditLogModel {
	m := &AuditLogModel{
		ID:         e.ID,
		TenantID:   e.TenantID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		UserID:     e.UserID,
		EventID:    e.EventID,
		OccurredAt: e.OccurredAt,
	}
	if len(e.Before) > 0 {
		before := string(e.Before)
		m.Before = &before
	}
	if len(e.After) > 0 {
		after := string(e.After)
		m.After = &after
	}
	return m
}

// BillingModels lists the models owned by the billing context, in creation order
func BillingModels() []any {
	return []any{
		&OrganizationModel{},
		&ClientModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&PaymentModel{},
		&AuditLogModel{},
	}
}
