package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var errClientVersion = shared.NewConflictError(billing.CodeVersionConflict,
	"The client has been modified by another transaction")

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByIDForTenant finds a client scoped to a tenant
func (r *GormClientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err, billing.ErrClientNotFound, nil)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists clients matching the filter
func (r *GormClientRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.Client, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ClientModel{}).Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, nil, nil)
	}

	sortField := ValidateSortField(filter.OrderBy, ClientSortFields, "name")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = paginate(query.Order(sortField+" "+sortOrder), filter)

	var clientModels []models.ClientModel
	if err := query.Find(&clientModels).Error; err != nil {
		return nil, 0, translateError(err, nil, nil)
	}

	clients := make([]billing.Client, len(clientModels))
	for i := range clientModels {
		clients[i] = *clientModels[i].ToDomain()
	}
	return clients, total, nil
}

// Create inserts a client
func (r *GormClientRepository) Create(ctx context.Context, client *billing.Client) error {
	return translateError(r.db.WithContext(ctx).Create(models.ClientModelFromDomain(client)).Error, nil, nil)
}

// SaveWithLock updates a client when the stored version is client.Version-1
func (r *GormClientRepository) SaveWithLock(ctx context.Context, client *billing.Client) error {
	result := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", client.ID, client.TenantID, client.Version-1).
		Updates(map[string]any{
			"name":       client.Name,
			"email":      client.Email,
			"phone":      client.Phone,
			"address":    client.Address,
			"notes":      client.Notes,
			"version":    client.Version,
			"updated_at": client.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, nil, nil)
	}
	if result.RowsAffected == 0 {
		return errClientVersion
	}
	return nil
}

// Delete removes a client
func (r *GormClientRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.ClientModel{})
	if result.Error != nil {
		return translateError(result.Error, nil, nil)
	}
	if result.RowsAffected == 0 {
		return billing.ErrClientNotFound
	}
	return nil
}

// Ensure GormClientRepository implements ClientRepository
var _ billing.ClientRepository = (*GormClientRepository)(nil)
