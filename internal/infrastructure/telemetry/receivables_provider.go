package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// openStatuses are the statuses whose balance is still collectible
var openStatuses = []string{"sent", "partial", "overdue"}

// GormReceivablesProvider reads open balances straight from the invoices table
type GormReceivablesProvider struct {
	db *gorm.DB
}

// NewGormReceivablesProvider creates a new GormReceivablesProvider
func NewGormReceivablesProvider(db *gorm.DB) *GormReceivablesProvider {
	return &GormReceivablesProvider{db: db}
}

// OutstandingReceivables groups open invoices by tenant and status
func (p *GormReceivablesProvider) OutstandingReceivables(ctx context.Context) ([]ReceivableSummary, error) {
	type row struct {
		TenantID     uuid.UUID       `gorm:"column:tenant_id"`
		Status       string          `gorm:"column:status"`
		InvoiceCount int64           `gorm:"column:invoice_count"`
		BalanceDue   decimal.Decimal `gorm:"column:balance_due"`
	}

	var rows []row
	err := p.db.WithContext(ctx).
		Table("invoices").
		Select("tenant_id, status, COUNT(*) AS invoice_count, COALESCE(SUM(balance_due), 0) AS balance_due").
		Where("status IN ?", openStatuses).
		Group("tenant_id, status").
		Order("tenant_id, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]ReceivableSummary, len(rows))
	for i, r := range rows {
		out[i] = ReceivableSummary(r)
	}
	return out, nil
}
