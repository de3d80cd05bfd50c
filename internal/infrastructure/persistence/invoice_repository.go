package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errInvoiceNumberTaken = shared.NewConflictError(billing.CodeInvoiceNumberTaken,
		"Invoice number is already in use")
	errInvoiceVersion = shared.NewConflictError(billing.CodeVersionConflict,
		"The invoice has been modified by another transaction")
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant loads an invoice with its items ordered by position
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		return nil, translateError(err, billing.ErrInvoiceNotFound, nil)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads an invoice with SELECT ... FOR UPDATE. Items are
// read in a second query since the lock clause cannot be combined with a
// preload.
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		return nil, translateError(err, billing.ErrInvoiceNotFound, nil)
	}

	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("sort_order ASC").
		Find(&model.Items).Error; err != nil {
		return nil, translateError(err, nil, nil)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists invoices without items
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(notes) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, nil, nil)
	}

	sortField := ValidateSortField(filter.OrderBy, InvoiceSortFields, "issue_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = paginate(query.Order(sortField+" "+sortOrder).Order("invoice_number "+sortOrder), filter.Filter)

	var invoiceModels []models.InvoiceModel
	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, 0, translateError(err, nil, nil)
	}
	return invoicesToDomain(invoiceModels), total, nil
}

// FindByClient returns every invoice of a client, newest first
func (r *GormInvoiceRepository) FindByClient(ctx context.Context, tenantID, clientID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Order("issue_date DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, translateError(err, nil, nil)
	}
	return invoicesToDomain(invoiceModels), nil
}

// FindDueBefore returns sent invoices whose due date is before the day of asOf
func (r *GormInvoiceRepository) FindDueBefore(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]billing.Invoice, error) {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND due_date IS NOT NULL AND due_date < ?",
			tenantID, billing.InvoiceStatusSent, day).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, translateError(err, nil, nil)
	}
	return invoicesToDomain(invoiceModels), nil
}

// CountByClient counts invoices referencing a client
func (r *GormInvoiceRepository) CountByClient(ctx context.Context, tenantID, clientID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Count(&count).Error; err != nil {
		return 0, translateError(err, nil, nil)
	}
	return count, nil
}

// Create inserts the invoice row and its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, nil, errInvoiceNumberTaken)
	}
	return nil
}

// SaveWithLock updates the invoice header when the stored version matches
// invoice.Version-1. With replaceItems the item rows are rewritten.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice, replaceItems bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", invoice.ID, invoice.TenantID, invoice.Version-1).
		Updates(map[string]any{
			"status":       string(invoice.Status),
			"issue_date":   invoice.IssueDate,
			"due_date":     invoice.DueDate,
			"tax_rate":     invoice.TaxRate,
			"subtotal":     invoice.Subtotal,
			"tax_amount":   invoice.TaxAmount,
			"total":        invoice.Total,
			"amount_paid":  invoice.AmountPaid,
			"balance_due":  invoice.BalanceDue,
			"notes":        invoice.Notes,
			"sent_at":      invoice.SentAt,
			"paid_at":      invoice.PaidAt,
			"cancelled_at": invoice.CancelledAt,
			"version":      invoice.Version,
			"updated_at":   invoice.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, nil, nil)
	}
	if result.RowsAffected == 0 {
		return errInvoiceVersion
	}
	if !replaceItems {
		return nil
	}

	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return translateError(err, nil, nil)
	}
	items := models.InvoiceItemModelsFromDomain(invoice)
	if len(items) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return translateError(err, nil, nil)
	}
	return nil
}

// Delete removes the invoice together with its items
func (r *GormInvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	owned := db.Model(&models.InvoiceModel{}).Select("id").Where("tenant_id = ? AND id = ?", tenantID, id)
	if err := db.Where("invoice_id IN (?)", owned).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return translateError(err, nil, nil)
	}

	result := db.
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.InvoiceModel{})
	if result.Error != nil {
		return translateError(result.Error, nil, nil)
	}
	if result.RowsAffected == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func invoicesToDomain(invoiceModels []models.InvoiceModel) []billing.Invoice {
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
