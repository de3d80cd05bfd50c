package telemetry

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type startTimeKey struct{ name string }

// otelgorm ends its span in callbacks named otel:after:<kind>
const otelAfterPrefix = "otel:after:"

// registerTimed installs a before/after callback pair on every GORM processor.
// The before hook stores the start time under key; after receives the
// operation name and the elapsed time. With beforeOtel the after hook runs
// while the otelgorm span is still open.
func registerTimed(db *gorm.DB, prefix string, key startTimeKey, beforeOtel bool, after func(db *gorm.DB, op string, elapsed time.Duration)) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
	afterFor := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			var elapsed time.Duration
			if db.Statement.Context != nil {
				if start, ok := db.Statement.Context.Value(key).(time.Time); ok {
					elapsed = time.Since(start)
				}
			}
			operation := op
			if operation == "" {
				operation = detectOperationType(db.Statement.SQL.String())
			}
			after(db, operation, elapsed)
		}
	}

	otelAfter := func(kind string) string {
		if !beforeOtel {
			return ""
		}
		return otelAfterPrefix + kind
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register(prefix+":before_create", before),
		cb.Query().Before("gorm:query").Register(prefix+":before_query", before),
		cb.Update().Before("gorm:update").Register(prefix+":before_update", before),
		cb.Delete().Before("gorm:delete").Register(prefix+":before_delete", before),
		cb.Row().Before("gorm:row").Register(prefix+":before_row", before),
		cb.Raw().Before("gorm:raw").Register(prefix+":before_raw", before),

		cb.Create().After("gorm:create").Before(otelAfter("create")).Register(prefix+":after_create", afterFor("INSERT")),
		cb.Query().After("gorm:query").Before(otelAfter("query")).Register(prefix+":after_query", afterFor("SELECT")),
		cb.Update().After("gorm:update").Before(otelAfter("update")).Register(prefix+":after_update", afterFor("UPDATE")),
		cb.Delete().After("gorm:delete").Before(otelAfter("delete")).Register(prefix+":after_delete", afterFor("DELETE")),
		cb.Row().After("gorm:row").Before(otelAfter("row")).Register(prefix+":after_row", afterFor("")),
		cb.Raw().After("gorm:raw").Before(otelAfter("raw")).Register(prefix+":after_raw", afterFor("")),
	)
}
