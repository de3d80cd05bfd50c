package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one row of the audit trail
type AuditEntry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     string
	UserID     *uuid.UUID
	EventID    uuid.UUID
	Before     json.RawMessage
	After      json.RawMessage
	OccurredAt time.Time
}

// NewAuditEntry builds an entry from an audited event
func NewAuditEntry(event AuditedEvent) (AuditEntry, error) {
	change := event.AuditChange()
	entry := AuditEntry{
		ID:         uuid.New(),
		TenantID:   event.TenantID(),
		EntityType: event.AggregateType(),
		EntityID:   event.AggregateID(),
		Action:     event.EventType(),
		UserID:     change.Actor,
		EventID:    event.EventID(),
		OccurredAt: event.OccurredAt(),
	}

	var err error
	if change.Before != nil {
		if entry.Before, err = json.Marshal(change.Before); err != nil {
			return AuditEntry{}, err
		}
	}
	if change.After != nil {
		if entry.After, err = json.Marshal(change.After); err != nil {
			return AuditEntry{}, err
		}
	}
	return entry, nil
}

// AuditLogRepository stores audit entries
type AuditLogRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error
	FindByEntity(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]AuditEntry, error)
}
