package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, named "METHOD /route/:pattern".
// Requests whose path starts with one of skipPrefixes are not traced. A nil
// provider means the global one.
func Tracing(serviceName string, provider trace.TracerProvider, skipPrefixes ...string) gin.HandlerFunc {
	opts := []otelgin.Option{
		otelgin.WithGinFilter(func(c *gin.Context) bool {
			for _, p := range skipPrefixes {
				if strings.HasPrefix(c.Request.URL.Path, p) {
					return false
				}
			}
			return true
		}),
	}
	if provider != nil {
		opts = append(opts, otelgin.WithTracerProvider(provider))
	}
	return otelgin.Middleware(serviceName, opts...)
}

// SpanAttributes tags the request span with the request ID and, once Auth
// has run, the tenant and user. Client errors also mark the span as failed;
// otelgin only does that for 5xx.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		attrs := make([]attribute.KeyValue, 0, 3)
		if id := GetRequestID(c); id != "" {
			attrs = append(attrs, attribute.String("request_id", id))
		}
		if identity := GetIdentity(c); identity != nil {
			attrs = append(attrs,
				attribute.String("tenant_id", identity.TenantID.String()),
				attribute.String("user_id", identity.UserID.String()),
			)
		}
		span.SetAttributes(attrs...)

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError &&
			status != http.StatusNotFound {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
