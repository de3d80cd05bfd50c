package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvoiceCreated       = "InvoiceCreated"
	EventTypeInvoiceUpdated       = "InvoiceUpdated"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
	EventTypeInvoiceSent          = "InvoiceSent"
	EventTypeInvoiceCancelled     = "InvoiceCancelled"
	EventTypeInvoiceDeleted       = "InvoiceDeleted"
	EventTypePaymentRecorded      = "PaymentRecorded"
	EventTypePaymentDeleted       = "PaymentDeleted"
	EventTypeClientCreated        = "ClientCreated"
	EventTypeClientUpdated        = "ClientUpdated"
	EventTypeClientDeleted        = "ClientDeleted"
)

// Aggregate type names used in events and audit records
const (
	AggregateTypeInvoice = "Invoice"
	AggregateTypeClient  = "Client"
)

// InvoiceSnapshot is the audit view of an invoice's financial state
type InvoiceSnapshot struct {
	InvoiceNumber string        `json:"invoice_number"`
	Status        InvoiceStatus `json:"status"`
	TaxRate       string        `json:"tax_rate"`
	Subtotal      string        `json:"subtotal"`
	TaxAmount     string        `json:"tax_amount"`
	Total         string        `json:"total"`
	AmountPaid    string        `json:"amount_paid"`
	BalanceDue    string        `json:"balance_due"`
	ItemCount     int           `json:"item_count"`
}

// Change is the before/after pair and actor attached to an auditable event
type Change struct {
	Actor  *uuid.UUID `json:"actor_id,omitempty"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// AuditChange returns the change itself; events embedding Change satisfy AuditedEvent
func (c Change) AuditChange() Change {
	return c
}

// AuditedEvent is a domain event that should leave an audit record
type AuditedEvent interface {
	shared.DomainEvent
	AuditChange() Change
}

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	Change
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	Total         decimal.Decimal `json:"total"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice, actor *uuid.UUID) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID),
		Change:          Change{Actor: actor, After: inv.Snapshot()},
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		Total:           inv.Total,
	}
}

// InvoiceUpdatedEvent is raised when items or header fields of an invoice change
type InvoiceUpdatedEvent struct {
	shared.BaseDomainEvent
	Change
	ClientID          uuid.UUID   `json:"client_id"`
	RemovedPaymentIDs []uuid.UUID `json:"removed_payment_ids,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceUpdatedEvent) EventType() string {
	return EventTypeInvoiceUpdated
}

// NewInvoiceUpdatedEvent creates a new InvoiceUpdatedEvent
func NewInvoiceUpdatedEvent(inv *Invoice, before InvoiceSnapshot, removed []uuid.UUID, actor *uuid.UUID) *InvoiceUpdatedEvent {
	return &InvoiceUpdatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeInvoiceUpdated, AggregateTypeInvoice, inv.ID, inv.TenantID),
		Change:            Change{Actor: actor, Before: before, After: inv.Snapshot()},
		ClientID:          inv.ClientID,
		RemovedPaymentIDs: removed,
	}
}

// InvoiceStatusChangedEvent is raised on any user-driven status change
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	Change
	ClientID   uuid.UUID     `json:"client_id"`
	FromStatus InvoiceStatus `json:"from_status"`
	ToStatus   InvoiceStatus `json:"to_status"`
}

// EventType returns the event type name
func (e *InvoiceStatusChangedEvent) EventType() string {
	return EventTypeInvoiceStatusChanged
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from InvoiceStatus, before InvoiceSnapshot, actor *uuid.UUID) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID, inv.TenantID),
		Change:          Change{Actor: actor, Before: before, After: inv.Snapshot()},
		ClientID:        inv.ClientID,
		FromStatus:      from,
		ToStatus:        inv.Status,
	}
}

// InvoiceSentEvent is raised when an invoice moves to sent. It triggers the
// outbound email and is not audited on its own.
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string    `json:"invoice_number"`
	ClientID      uuid.UUID `json:"client_id"`
	SentAt        time.Time `json:"sent_at"`
	FirstSend     bool      `json:"first_send"`
}

// EventType returns the event type name
func (e *InvoiceSentEvent) EventType() string {
	return EventTypeInvoiceSent
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(inv *Invoice, firstSend bool) *InvoiceSentEvent {
	sentAt := time.Now()
	if inv.SentAt != nil {
		sentAt = *inv.SentAt
	}
	return &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSent, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		SentAt:          sentAt,
		FirstSend:       firstSend,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled and its ledger purged
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber     string        `json:"invoice_number"`
	ClientID          uuid.UUID     `json:"client_id"`
	PreviousStatus    InvoiceStatus `json:"previous_status"`
	PurgedPaymentIDs  []uuid.UUID   `json:"purged_payment_ids,omitempty"`
	PurgedAmountTotal string        `json:"purged_amount_total"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return EventTypeInvoiceCancelled
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice, previous InvoiceStatus) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:     inv.InvoiceNumber,
		ClientID:          inv.ClientID,
		PreviousStatus:    previous,
		PurgedAmountTotal: "0.00",
	}
}

// RecordPurge attaches the payments removed by the cancellation
func (e *InvoiceCancelledEvent) RecordPurge(payments []Payment) {
	e.PurgedPaymentIDs = make([]uuid.UUID, 0, len(payments))
	for _, p := range payments {
		e.PurgedPaymentIDs = append(e.PurgedPaymentIDs, p.ID)
	}
	e.PurgedAmountTotal = SumPayments(payments).StringFixed(2)
}

// InvoiceDeletedEvent is raised when a draft or cancelled invoice is removed
type InvoiceDeletedEvent struct {
	shared.BaseDomainEvent
	Change
	ClientID uuid.UUID `json:"client_id"`
}

// EventType returns the event type name
func (e *InvoiceDeletedEvent) EventType() string {
	return EventTypeInvoiceDeleted
}

// NewInvoiceDeletedEvent creates a new InvoiceDeletedEvent
func NewInvoiceDeletedEvent(inv *Invoice, actor *uuid.UUID) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceDeleted, AggregateTypeInvoice, inv.ID, inv.TenantID),
		Change:          Change{Actor: actor, Before: inv.Snapshot()},
		ClientID:        inv.ClientID,
	}
}

// PaymentRecordedEvent is raised when a payment is added to an invoice's ledger
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	Change
	PaymentID uuid.UUID       `json:"payment_id"`
	ClientID  uuid.UUID       `json:"client_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	NewStatus InvoiceStatus   `json:"new_status"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return EventTypePaymentRecorded
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(inv *Invoice, p *Payment, before InvoiceSnapshot, actor *uuid.UUID) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeInvoice, inv.ID, inv.TenantID),
		Change:          Change{Actor: actor, Before: before, After: inv.Snapshot()},
		PaymentID:       p.ID,
		ClientID:        inv.ClientID,
		Amount:          p.Amount,
		Method:          p.Method,
		NewStatus:       inv.Status,
	}
}

// PaymentDeletedEvent is raised when a payment is removed from an invoice's ledger
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	Change
	PaymentID uuid.UUID       `json:"payment_id"`
	ClientID  uuid.UUID       `json:"client_id"`
	Amount    decimal.Decimal `json:"amount"`
	NewStatus InvoiceStatus   `json:"new_status"`
}

// EventType returns the event type name
func (e *PaymentDeletedEvent) EventType() string {
	return EventTypePaymentDeleted
}

// NewPaymentDeletedEvent creates a new PaymentDeletedEvent
func NewPaymentDeletedEvent(inv *Invoice, p *Payment, before InvoiceSnapshot, actor *uuid.UUID) *PaymentDeletedEvent {
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, AggregateTypeInvoice, inv.ID, inv.TenantID),
		Change:          Change{Actor: actor, Before: before, After: inv.Snapshot()},
		PaymentID:       p.ID,
		ClientID:        inv.ClientID,
		Amount:          p.Amount,
		NewStatus:       inv.Status,
	}
}

// ClientChangedEvent is raised when a client is created, updated or deleted
type ClientChangedEvent struct {
	shared.BaseDomainEvent
	Change
	Name string `json:"name"`
}

// NewClientChangedEvent creates a client event of the given type
func NewClientChangedEvent(eventType string, c *Client, before *ClientSnapshot, actor *uuid.UUID) *ClientChangedEvent {
	change := Change{Actor: actor}
	if before != nil {
		change.Before = *before
	}
	if eventType != EventTypeClientDeleted {
		change.After = c.Snapshot()
	}
	return &ClientChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeClient, c.ID, c.TenantID),
		Change:          change,
		Name:            c.Name,
	}
}
