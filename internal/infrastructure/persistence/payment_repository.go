package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByIDForTenant finds a payment scoped to a tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err, billing.ErrPaymentNotFound, nil)
	}
	return model.ToDomain(), nil
}

// FindByInvoice returns an invoice's ledger, latest payment first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("payment_date DESC").
		Order("created_at DESC").
		Find(&paymentModels).Error; err != nil {
		return nil, translateError(err, nil, nil)
	}

	payments := make([]billing.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = *paymentModels[i].ToDomain()
	}
	return payments, nil
}

// Create inserts a ledger entry
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	return translateError(r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error, nil, nil)
}

// DeleteByIDs removes the listed payments of one invoice
func (r *GormPaymentRepository) DeleteByIDs(ctx context.Context, tenantID, invoiceID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ? AND id IN ?", tenantID, invoiceID, ids).
		Delete(&models.PaymentModel{})
	if result.Error != nil {
		return translateError(result.Error, nil, nil)
	}
	if result.RowsAffected != int64(len(ids)) {
		return billing.ErrPaymentNotFound
	}
	return nil
}

// DeleteByInvoice removes every payment of an invoice
func (r *GormPaymentRepository) DeleteByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	return translateError(r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Delete(&models.PaymentModel{}).Error, nil, nil)
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
