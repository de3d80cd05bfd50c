// Package models holds the GORM rows of the billing tables and their
// mappers to and from the domain types in internal/domain/billing.
//
// Domain types carry no ORM tags. Repositories load rows into these models
// and convert with ToDomain; writes go through the *FromDomain helpers.
// Monetary columns are NUMERIC(12,2) and map to decimal.Decimal.
package models
