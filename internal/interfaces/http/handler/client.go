package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// ClientService manages clients
type ClientService interface {
	Create(ctx context.Context, tenantID, userID uuid.UUID, req appbilling.ClientRequest) (*appbilling.ClientResponse, error)
	Update(ctx context.Context, tenantID, userID, clientID uuid.UUID, req appbilling.ClientRequest) (*appbilling.ClientResponse, error)
	Delete(ctx context.Context, tenantID, userID, clientID uuid.UUID) error
	Get(ctx context.Context, tenantID, clientID uuid.UUID) (*appbilling.ClientResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter appbilling.ClientListFilter) ([]appbilling.ClientResponse, int64, error)
}

// BalanceReader computes a client's invoice summary
type BalanceReader interface {
	GetClientBalance(ctx context.Context, tenantID, clientID uuid.UUID) (*appbilling.ClientBalanceResponse, error)
}

// ClientHandler handles client-related HTTP requests
type ClientHandler struct {
	BaseHandler
	clients  ClientService
	balances BalanceReader
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients ClientService, balances BalanceReader) *ClientHandler {
	return &ClientHandler{clients: clients, balances: balances}
}

// Create handles POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.ClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	client, err := h.clients.Create(c.Request.Context(), tenantID, userID, req.ToApp())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, client)
}

// List handles GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	tenantID, _, ok := h.caller(c)
	if !ok {
		return
	}
	var q dto.ClientListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()
	clients, total, err := h.clients.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	page, size := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, clients, total, page, size)
}

// Get handles GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	tenantID, _, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	client, err := h.clients.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, client)
}

// Update handles PUT /clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	client, err := h.clients.Update(c.Request.Context(), tenantID, userID, id, req.ToApp())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, client)
}

// Delete handles DELETE /clients/:id
func (h *ClientHandler) Delete(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.clients.Delete(c.Request.Context(), tenantID, userID, id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// Balance handles GET /clients/:id/balance
func (h *ClientHandler) Balance(c *gin.Context) {
	tenantID, _, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	balance, err := h.balances.GetClientBalance(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, balance)
}
