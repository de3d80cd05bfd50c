package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func clientRouter(clients *MockClientService, invoices *MockInvoiceService) *gin.Engine {
	r := newTestRouter(true)
	h := NewClientHandler(clients, invoices)
	r.POST("/clients", h.Create)
	r.GET("/clients", h.List)
	r.GET("/clients/:id", h.Get)
	r.PUT("/clients/:id", h.Update)
	r.DELETE("/clients/:id", h.Delete)
	r.GET("/clients/:id/balance", h.Balance)
	return r
}

func TestClientHandler_Create(t *testing.T) {
	clients := new(MockClientService)
	id := uuid.New()
	clients.On("Create", mock.Anything, testTenantID, testUserID, appbilling.ClientRequest{
		Name:  "Acme Ltd",
		Email: "billing@acme.test",
	}).Return(&appbilling.ClientResponse{ID: id, Name: "Acme Ltd", Email: "billing@acme.test"}, nil)

	w := doJSON(t, clientRouter(clients, nil), http.MethodPost, "/clients", map[string]string{
		"name":  "Acme Ltd",
		"email": "billing@acme.test",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got appbilling.ClientResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, id, got.ID)
	clients.AssertExpectations(t)
}

func TestClientHandler_Create_Validation(t *testing.T) {
	clients := new(MockClientService)
	r := clientRouter(clients, nil)

	w := doJSON(t, r, http.MethodPost, "/clients", map[string]string{"email": "billing@acme.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(decode(t, w).Error.Details), `"field":"name"`)

	w = doJSON(t, r, http.MethodPost, "/clients", map[string]string{"name": "Acme", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(decode(t, w).Error.Details), `"field":"email"`)

	clients.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClientHandler_List(t *testing.T) {
	clients := new(MockClientService)
	clients.On("List", mock.Anything, testTenantID, appbilling.ClientListFilter{Search: "acme", Page: 1, PageSize: 5}).
		Return([]appbilling.ClientResponse{{ID: uuid.New(), Name: "Acme"}}, int64(1), nil)

	w := doJSON(t, clientRouter(clients, nil), http.MethodGet, "/clients?search=acme&page=1&page_size=5", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, int64(1), env.Meta.Total)
	assert.Equal(t, 5, env.Meta.PageSize)
}

func TestClientHandler_GetUpdate(t *testing.T) {
	clients := new(MockClientService)
	id := uuid.New()
	clients.On("Get", mock.Anything, testTenantID, id).Return(&appbilling.ClientResponse{ID: id, Name: "Acme"}, nil)
	clients.On("Update", mock.Anything, testTenantID, testUserID, id, appbilling.ClientRequest{Name: "Acme Group"}).
		Return(&appbilling.ClientResponse{ID: id, Name: "Acme Group", Version: 2}, nil)

	r := clientRouter(clients, nil)
	w := doJSON(t, r, http.MethodGet, "/clients/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, "/clients/"+id.String(), map[string]string{"name": "Acme Group"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got appbilling.ClientResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, 2, got.Version)
}

func TestClientHandler_Delete(t *testing.T) {
	clients := new(MockClientService)
	free := uuid.New()
	busy := uuid.New()
	clients.On("Delete", mock.Anything, testTenantID, testUserID, free).Return(nil)
	clients.On("Delete", mock.Anything, testTenantID, testUserID, busy).
		Return(shared.NewConflictError(billing.CodeClientHasInvoices, "Client still has invoices"))

	r := clientRouter(clients, nil)
	w := doJSON(t, r, http.MethodDelete, "/clients/"+free.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/clients/"+busy.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, billing.CodeClientHasInvoices, decode(t, w).Error.Code)
}

func TestClientHandler_Balance(t *testing.T) {
	invoices := new(MockInvoiceService)
	id := uuid.New()
	invoices.On("GetClientBalance", mock.Anything, testTenantID, id).Return(&appbilling.ClientBalanceResponse{
		ClientID:       id,
		InvoiceCount:   3,
		CountsByStatus: map[string]int{"paid": 1, "sent": 2},
		TotalInvoiced:  decimal.RequireFromString("300.00"),
		TotalPaid:      decimal.RequireFromString("100.00"),
		Outstanding:    decimal.RequireFromString("200.00"),
	}, nil)
	missing := uuid.New()
	invoices.On("GetClientBalance", mock.Anything, testTenantID, missing).Return(nil, billing.ErrClientNotFound)

	r := clientRouter(new(MockClientService), invoices)
	w := doJSON(t, r, http.MethodGet, "/clients/"+id.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got appbilling.ClientBalanceResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, 3, got.InvoiceCount)
	assert.True(t, got.Outstanding.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 2, got.CountsByStatus["sent"])

	w = doJSON(t, r, http.MethodGet, "/clients/"+missing.String()+"/balance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
