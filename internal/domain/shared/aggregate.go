package shared

import "github.com/google/uuid"

// AggregateRoot is a consistency boundary that records the events raised
// while it was mutated. Services drain them after commit.
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries the optimistic lock version and pending events
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	events  []DomainEvent
}

// GetVersion returns the optimistic lock version
func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// IncrementVersion bumps the version; persistence matches on Version-1
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues an event for publication
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the queued events in the order they were raised
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.events }

// ClearDomainEvents drops the queued events
func (a *BaseAggregateRoot) ClearDomainEvents() { a.events = nil }

// TenantAggregateRoot is an aggregate owned by one organization
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
}

// NewTenantAggregateRoot starts a version 1 aggregate for tenantID
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1},
		TenantID:          tenantID,
	}
}

// SetCreatedBy records the user that created the aggregate
func (a *TenantAggregateRoot) SetCreatedBy(id uuid.UUID) {
	a.CreatedBy = &id
}
