// Package router assembles the gin engine: global middleware, the public
// health probes and the authenticated billing API under /api/v1.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouteRegistrar registers a set of routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router on engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar for Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts every registrar and returns the versioned group
func (r *Router) Setup() *gin.RouterGroup {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
	return api
}

// DomainGroup is a prefix with its own middleware, routes and subgroups
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []routeDefinition
	subgroups  []*DomainGroup
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a group mounted at prefix
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group and its subgroups
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, path, handlers)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodDelete, path, handlers)
}

// Group creates a subgroup that inherits this group's middleware
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	sub := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, sub)
	return sub
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, sub := range dg.subgroups {
		sub.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Handlers are the endpoint handlers mounted by New
type Handlers struct {
	Invoices *handler.InvoiceHandler
	Clients  *handler.ClientHandler
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
}

// Deps are the collaborators of the middleware chain. Tracer, Meter and
// RateLimiter may be nil.
type Deps struct {
	HTTP          config.HTTPConfig
	ServiceName   string
	Logger        *zap.Logger
	Authenticator *auth.Authenticator
	RateLimiter   *middleware.RateLimiter
	Tracer        trace.TracerProvider
	Meter         metric.Meter
}

// probePaths are served without access logs or spans
var probePaths = []string{"/health", "/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"}

// New builds the engine with the full middleware chain and every route
func New(deps Deps, h Handlers) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if len(deps.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
			return nil, err
		}
	} else if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	metrics, err := middleware.HTTPMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(deps.Logger, probePaths...),
		logger.Recovery(deps.Logger),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(deps.HTTP)),
		middleware.BodyLimit(deps.HTTP.MaxBodySize),
		middleware.Tracing(deps.ServiceName, deps.Tracer, probePaths...),
		middleware.SpanAttributes(),
		metrics,
	)
	engine.NoRoute(func(c *gin.Context) {
		(&handler.BaseHandler{}).Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Route not found")
	})

	engine.GET("/health", h.Health.Ready)

	protected := []gin.HandlerFunc{middleware.Auth(deps.Authenticator), middleware.SpanAttributes()}
	if deps.RateLimiter != nil {
		protected = append(protected, middleware.RateLimit(deps.RateLimiter))
	}

	NewRouter(engine).Register(
		healthRoutes(h.Health),
		invoiceRoutes(h.Invoices).Use(protected...),
		paymentRoutes(h.Invoices).Use(protected...),
		clientRoutes(h.Clients).Use(protected...),
		authRoutes(h.Auth).Use(protected...),
	).Setup()

	return engine, nil
}

func healthRoutes(h *handler.HealthHandler) *DomainGroup {
	return NewDomainGroup("health", "/health").
		GET("", h.Ready).
		GET("/live", h.Live).
		GET("/ready", h.Ready)
}

func invoiceRoutes(h *handler.InvoiceHandler) *DomainGroup {
	return NewDomainGroup("invoices", "/invoices").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.Get).
		PUT("/:id", h.Update).
		PUT("/:id/confirm", h.Confirm).
		POST("/:id/status", h.UpdateStatus).
		DELETE("/:id", h.Delete).
		POST("/:id/payments", h.RecordPayment).
		GET("/:id/payments", h.ListPayments)
}

func paymentRoutes(h *handler.InvoiceHandler) *DomainGroup {
	return NewDomainGroup("payments", "/payments").
		DELETE("/:id", h.DeletePayment)
}

func clientRoutes(h *handler.ClientHandler) *DomainGroup {
	return NewDomainGroup("clients", "/clients").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.Get).
		PUT("/:id", h.Update).
		DELETE("/:id", h.Delete).
		GET("/:id/balance", h.Balance)
}

func authRoutes(h *handler.AuthHandler) *DomainGroup {
	return NewDomainGroup("auth", "/auth").
		POST("/logout", h.Logout)
}
