package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDBTracingConfigFrom(t *testing.T) {
	cfg := DBTracingConfigFrom(config.TelemetryConfig{Enabled: true, DBTraceEnabled: true}, "invoicing")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "invoicing", cfg.DBName)

	cfg = DBTracingConfigFrom(config.TelemetryConfig{Enabled: false, DBTraceEnabled: true}, "invoicing")
	assert.False(t, cfg.Enabled, "database spans need telemetry enabled")
}

func TestAnnotateSpan(t *testing.T) {
	recorder := useRecordingTracer(t)
	ctx, span := otel.Tracer("test").Start(context.Background(), "query")

	db := &gorm.DB{Statement: &gorm.Statement{Context: ctx, Table: "invoices"}}
	db.RowsAffected = 2
	db.Error = errors.New("deadlock detected")
	annotateSpan(db, 300*time.Millisecond, 200*time.Millisecond)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]

	v, ok := spanAttr(got.Attributes(), "db.rows_affected")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
	v, ok = spanAttr(got.Attributes(), "db.sql.table")
	require.True(t, ok)
	assert.Equal(t, "invoices", v.AsString())
	v, ok = spanAttr(got.Attributes(), "db.slow_query")
	require.True(t, ok)
	assert.True(t, v.AsBool())
	assert.Equal(t, codes.Error, got.Status().Code)
	require.Len(t, got.Events(), 2, "error and slow query events")
}

func TestAnnotateSpan_RecordNotFoundIsNotAnError(t *testing.T) {
	recorder := useRecordingTracer(t)
	ctx, span := otel.Tracer("test").Start(context.Background(), "query")

	db := &gorm.DB{Statement: &gorm.Statement{Context: ctx, Table: "clients"}}
	db.Error = gorm.ErrRecordNotFound
	annotateSpan(db, time.Millisecond, 200*time.Millisecond)
	span.End()

	got := recorder.Ended()[0]
	assert.NotEqual(t, codes.Error, got.Status().Code)
	_, slow := spanAttr(got.Attributes(), "db.slow_query")
	assert.False(t, slow)
}

func TestRegisterDBTracing(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := openTestDB(t)
		require.NoError(t, RegisterDBTracing(db, DBTracingConfig{}, zap.NewNop()))
		assert.Nil(t, db.Callback().Query().Get("otel_annotate:after_query"))
	})

	t.Run("enabled produces query spans", func(t *testing.T) {
		recorder := useRecordingTracer(t)
		db := openTestDB(t)
		require.NoError(t, RegisterDBTracing(db, DBTracingConfig{
			Enabled:         true,
			SlowQueryThresh: time.Second,
			DBName:          "test",
		}, zap.NewNop()))
		assert.NotNil(t, db.Callback().Query().Get("otel_annotate:after_query"))

		ctx, parent := otel.Tracer("test").Start(context.Background(), "request")
		var rows []probeRow
		require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
		parent.End()

		assert.GreaterOrEqual(t, len(recorder.Ended()), 2, "the query span and the parent")
	})
}
