// Package shared is the kernel the billing domain builds on: entity and
// aggregate bases, domain events, typed errors and list filters.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything with an identity
type Entity interface {
	GetID() uuid.UUID
}

// BaseEntity holds the id and timestamps every billing record carries
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// NewBaseEntity assigns a fresh ID and stamps both timestamps with now
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}
