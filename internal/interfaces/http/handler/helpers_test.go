package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var (
	testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// MockInvoiceService implements InvoiceService for testing
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, tenantID, userID uuid.UUID, req appbilling.CreateInvoiceRequest) (*appbilling.InvoiceResult, error) {
	args := m.Called(ctx, tenantID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.InvoiceResult), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appbilling.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter appbilling.InvoiceListFilter) ([]appbilling.InvoiceResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]appbilling.InvoiceResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) ProposeEdit(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req appbilling.UpdateInvoiceRequest) (*appbilling.EditResult, error) {
	args := m.Called(ctx, tenantID, userID, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.EditResult), args.Error(1)
}

func (m *MockInvoiceService) ConfirmEdit(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req appbilling.ConfirmEditRequest) (*appbilling.InvoiceResult, error) {
	args := m.Called(ctx, tenantID, userID, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.InvoiceResult), args.Error(1)
}

func (m *MockInvoiceService) UpdateInvoiceStatus(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, status string) (*appbilling.InvoiceResult, error) {
	args := m.Called(ctx, tenantID, userID, invoiceID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.InvoiceResult), args.Error(1)
}

func (m *MockInvoiceService) DeleteInvoice(ctx context.Context, tenantID, userID, invoiceID uuid.UUID) (*appbilling.ClientBalanceResponse, error) {
	args := m.Called(ctx, tenantID, userID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.ClientBalanceResponse), args.Error(1)
}

func (m *MockInvoiceService) RecordPayment(ctx context.Context, tenantID, userID, invoiceID uuid.UUID, req appbilling.RecordPaymentRequest) (*appbilling.PaymentResult, error) {
	args := m.Called(ctx, tenantID, userID, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.PaymentResult), args.Error(1)
}

func (m *MockInvoiceService) DeletePayment(ctx context.Context, tenantID, userID, paymentID uuid.UUID) (*appbilling.PaymentResult, error) {
	args := m.Called(ctx, tenantID, userID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.PaymentResult), args.Error(1)
}

func (m *MockInvoiceService) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]appbilling.PaymentResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]appbilling.PaymentResponse), args.Error(1)
}

func (m *MockInvoiceService) GetClientBalance(ctx context.Context, tenantID, clientID uuid.UUID) (*appbilling.ClientBalanceResponse, error) {
	args := m.Called(ctx, tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.ClientBalanceResponse), args.Error(1)
}

// MockClientService implements ClientService for testing
type MockClientService struct {
	mock.Mock
}

func (m *MockClientService) Create(ctx context.Context, tenantID, userID uuid.UUID, req appbilling.ClientRequest) (*appbilling.ClientResponse, error) {
	args := m.Called(ctx, tenantID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.ClientResponse), args.Error(1)
}

func (m *MockClientService) Update(ctx context.Context, tenantID, userID, clientID uuid.UUID, req appbilling.ClientRequest) (*appbilling.ClientResponse, error) {
	args := m.Called(ctx, tenantID, userID, clientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.ClientResponse), args.Error(1)
}

func (m *MockClientService) Delete(ctx context.Context, tenantID, userID, clientID uuid.UUID) error {
	return m.Called(ctx, tenantID, userID, clientID).Error(0)
}

func (m *MockClientService) Get(ctx context.Context, tenantID, clientID uuid.UUID) (*appbilling.ClientResponse, error) {
	args := m.Called(ctx, tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.ClientResponse), args.Error(1)
}

func (m *MockClientService) List(ctx context.Context, tenantID uuid.UUID, filter appbilling.ClientListFilter) ([]appbilling.ClientResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]appbilling.ClientResponse), args.Get(1).(int64), args.Error(2)
}

// withIdentity stands in for middleware.Auth
func withIdentity(c *gin.Context) {
	c.Set(middleware.IdentityKey, &auth.Identity{
		TenantID: testTenantID,
		UserID:   testUserID,
		TokenID:  "test-jti",
	})
	c.Next()
}

func newTestRouter(authenticated bool) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	if authenticated {
		r.Use(withIdentity)
	}
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"request_id"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
