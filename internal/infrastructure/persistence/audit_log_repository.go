package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements AuditLogRepository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Create appends an entry
func (r *GormAuditLogRepository) Create(ctx context.Context, entry *billing.AuditEntry) error {
	return translateError(r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error, nil, nil)
}

// FindByEntity returns the trail of one entity in the order it happened
func (r *GormAuditLogRepository) FindByEntity(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]billing.AuditEntry, error) {
	var logModels []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("occurred_at ASC").
		Find(&logModels).Error; err != nil {
		return nil, translateError(err, nil, nil)
	}

	entries := make([]billing.AuditEntry, len(logModels))
	for i := range logModels {
		entries[i] = logModels[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ billing.AuditLogRepository = (*GormAuditLogRepository)(nil)
