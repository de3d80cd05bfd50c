package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.TelemetryConfig{Enabled: false, ServiceName: "invoicing-test"}

	tp, err := NewTracerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}

func TestStartServiceSpan(t *testing.T) {
	recorder := useRecordingTracer(t)

	ctx, span := StartServiceSpan(context.Background(), "invoice", "record_payment",
		WithAttribute(SpanAttrInvoiceID, "inv-1"))
	assert.NotEmpty(t, GetTraceID(ctx))
	SetAttributes(span, SpanAttrAmount, "25.00", 42, "ignored", "count", 3)
	SetAttribute(span, SpanAttrInvoiceStatus, "partial")
	AddEvent(span, "payment_applied", "overpaid", false)
	RecordError(span, errors.New("version conflict"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "invoice.record_payment", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)

	v, ok := spanAttr(got.Attributes(), SpanAttrInvoiceID)
	require.True(t, ok)
	assert.Equal(t, "inv-1", v.AsString())
	v, ok = spanAttr(got.Attributes(), "count")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt64())
	_, ok = spanAttr(got.Attributes(), "ignored")
	assert.False(t, ok, "pairs with a non-string key are skipped")
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestHelpers_NilSpan(t *testing.T) {
	SetAttributes(nil, "k", "v")
	SetAttribute(nil, "k", "v")
	AddEvent(nil, "e")
	RecordError(nil, errors.New("x"))
	SetOK(nil)
}
