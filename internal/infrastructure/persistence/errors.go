package persistence

import (
	"errors"
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM errors onto domain errors. notFound is returned
// for gorm.ErrRecordNotFound; duplicate keys become conflict.
func translateError(err error, notFound error, conflict *shared.DomainError) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey) && conflict != nil:
		return conflict
	default:
		return shared.NewPersistenceError("database operation failed", err)
	}
}

// likePattern builds a case-insensitive LIKE pattern for a search term
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// paginate applies offset/limit when both page and page size are set
func paginate(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}
