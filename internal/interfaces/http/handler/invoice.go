package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// InvoiceService is the part of the billing service the invoice and payment
// handlers call
type InvoiceService interface {
	CreateInvoice(ctx context.Context, tenantID, userID uuid.UUID, req appbilling.CreateInvoiceRequest) (*appbilling.InvoiceResult, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appbilling.InvoiceResponse, error)
	ListInvoices(ctx context.Context, tenantID uuid.UUID, filter appbilling.InvoiceListFilter) ([]appbilling.InvoiceResponse, int64, error)
	ProposeEdit(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req appbilling.UpdateInvoiceRequest) (*appbilling.EditResult, error)
	ConfirmEdit(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req appbilling.ConfirmEditRequest) (*appbilling.InvoiceResult, error)
	UpdateInvoiceStatus(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, status string) (*appbilling.InvoiceResult, error)
	DeleteInvoice(ctx context.Context, tenantID, userID, invoiceID uuid.UUID) (*appbilling.ClientBalanceResponse, error)
	RecordPayment(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req appbilling.RecordPaymentRequest) (*appbilling.PaymentResult, error)
	DeletePayment(ctx context.Context, tenantID, userID, paymentID uuid.UUID) (*appbilling.PaymentResult, error)
	ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]appbilling.PaymentResponse, error)
}

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler struct {
	BaseHandler
	service InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	appReq, err := req.ToApp()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateInvoice(c.Request.Context(), tenantID, userID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, result)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, _, ok := h.caller(c)
	if !ok {
		return
	}
	var q dto.InvoiceListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()
	invoices, total, err := h.service.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	page, size := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, invoices, total, page, size)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenantID, _, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Update handles PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	appReq, err := req.ToApp()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ProposeEdit(c.Request.Context(), tenantID, userID, id, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	if !result.Applied {
		h.HandleDomainError(c, result.Reconciliation)
		return
	}
	h.Success(c, dto.EditResponse{Applied: true, InvoiceResult: *result.Result})
}

// Confirm handles PUT /invoices/:id/confirm
func (h *InvoiceHandler) Confirm(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ConfirmEditRequest
	if !h.bindJSON(c, &req) {
		return
	}
	appReq, err := req.ToApp()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ConfirmEdit(c.Request.Context(), tenantID, userID, id, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// UpdateStatus handles POST /invoices/:id/status
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.UpdateInvoiceStatus(c.Request.Context(), tenantID, userID, id, req.Status)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete handles DELETE /invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	balance, err := h.service.DeleteInvoice(c.Request.Context(), tenantID, userID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, dto.DeleteInvoiceResponse{ID: id, ClientBalance: balance})
}

// RecordPayment handles POST /invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	appReq, err := req.ToApp()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RecordPayment(c.Request.Context(), tenantID, userID, id, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(result))
}

// ListPayments handles GET /invoices/:id/payments
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	tenantID, _, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, payments)
}

// DeletePayment handles DELETE /payments/:id
func (h *InvoiceHandler) DeletePayment(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.service.DeletePayment(c.Request.Context(), tenantID, userID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

func pageOrDefault(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
