package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrganizationRepository implements OrganizationRepository using GORM
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewGormOrganizationRepository creates a new GormOrganizationRepository
func NewGormOrganizationRepository(db *gorm.DB) *GormOrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// FindByID finds an organization
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Organization, error) {
	var model models.OrganizationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, billing.ErrOrganizationNotFound, nil)
	}
	return model.ToDomain(), nil
}

// ListIDs returns all organization ids
func (r *GormOrganizationRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.OrganizationModel{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, translateError(err, nil, nil)
	}
	return ids, nil
}

// AllocateInvoiceNumber increments invoice_next_number in a single
// UPDATE ... RETURNING statement and returns the value it held before. The
// row stays locked until the surrounding transaction ends, so concurrent
// creations for one tenant serialize here.
func (r *GormOrganizationRepository) AllocateInvoiceNumber(ctx context.Context, id uuid.UUID) (string, int64, error) {
	var model models.OrganizationModel
	result := r.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{Columns: []clause.Column{
			{Name: "id"},
			{Name: "invoice_prefix"},
			{Name: "invoice_next_number"},
		}}).
		Where("id = ?", id).
		Updates(map[string]any{
			"invoice_next_number": gorm.Expr("invoice_next_number + ?", 1),
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return "", 0, translateError(result.Error, nil, nil)
	}
	if result.RowsAffected == 0 {
		return "", 0, billing.ErrOrganizationNotFound
	}

	org := model.ToDomain()
	return org.Prefix(), org.InvoiceNextNumber - 1, nil
}

// Upsert creates the organization or updates its name, email, prefix and
// locale. The invoice counter of an existing organization is left alone.
func (r *GormOrganizationRepository) Upsert(ctx context.Context, org *billing.Organization) error {
	model := models.OrganizationModelFromDomain(org)
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "invoice_prefix", "locale", "updated_at"}),
	}).Create(model).Error
	return translateError(err, nil, nil)
}

// Ensure GormOrganizationRepository implements OrganizationRepository
var _ billing.OrganizationRepository = (*GormOrganizationRepository)(nil)
