package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type billingFixture struct {
	db       *TestDB
	org      *billing.Organization
	userID   uuid.UUID
	invoices *appbilling.InvoiceService
	clients  *appbilling.ClientService
}

func newBillingFixture(t *testing.T, prefix string, opts ...appbilling.Option) *billingFixture {
	t.Helper()
	db := NewTestDB(t)
	scope := persistence.NewGormTransactionScope(db.DB)
	return &billingFixture{
		db:       db,
		org:      db.CreateOrganization(t, prefix),
		userID:   uuid.New(),
		invoices: appbilling.NewInvoiceService(scope, opts...),
		clients:  appbilling.NewClientService(scope, opts...),
	}
}

func (f *billingFixture) client(t *testing.T, name string) uuid.UUID {
	t.Helper()
	c, err := f.clients.Create(context.Background(), f.org.ID, f.userID, appbilling.ClientRequest{
		Name:  name,
		Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.test",
	})
	require.NoError(t, err)
	return c.ID
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// invoice of 2 x 100.00 + 1 x 50.00 at 10% tax: total 275.00
func (f *billingFixture) invoice(t *testing.T, clientID uuid.UUID) appbilling.InvoiceResponse {
	t.Helper()
	res, err := f.createInvoice(clientID)
	require.NoError(t, err)
	return res.Invoice
}

func (f *billingFixture) createInvoice(clientID uuid.UUID) (*appbilling.InvoiceResult, error) {
	return f.invoices.CreateInvoice(context.Background(), f.org.ID, f.userID, appbilling.CreateInvoiceRequest{
		ClientID:  clientID,
		IssueDate: day(2026, 3, 1),
		DueDate:   day(2026, 3, 31),
		TaxRate:   dec("10"),
		Items: []appbilling.LineItemInput{
			{Description: "Consulting", Quantity: 2, Rate: dec("100")},
			{Description: "Travel", Quantity: 1, Rate: dec("50")},
		},
	})
}

func (f *billingFixture) pay(t *testing.T, invoiceID uuid.UUID, amount string) (*appbilling.PaymentResult, error) {
	t.Helper()
	return f.invoices.RecordPayment(context.Background(), f.org.ID, f.userID, invoiceID, appbilling.RecordPaymentRequest{
		Amount:      dec(amount),
		PaymentDate: day(2026, 3, 10),
		Method:      "bank_transfer",
	})
}

func TestInvoiceLifecycle(t *testing.T) {
	f := newBillingFixture(t, "LIFE")
	ctx := context.Background()
	clientID := f.client(t, "Acme Corp")

	inv := f.invoice(t, clientID)
	assert.Equal(t, "draft", inv.Status)
	assert.True(t, inv.Subtotal.Equal(dec("250")))
	assert.True(t, inv.TaxAmount.Equal(dec("25")))
	assert.True(t, inv.Total.Equal(dec("275")))
	assert.True(t, strings.HasPrefix(inv.InvoiceNumber, "LIFE-2026-"), inv.InvoiceNumber)

	sent, err := f.invoices.UpdateInvoiceStatus(ctx, f.org.ID, f.userID, inv.ID, "sent")
	require.NoError(t, err)
	assert.Equal(t, "sent", sent.Invoice.Status)
	assert.NotNil(t, sent.Invoice.SentAt)

	first, err := f.pay(t, inv.ID, "100")
	require.NoError(t, err)
	assert.Equal(t, "partial", first.Invoice.Status)
	assert.True(t, first.Invoice.BalanceDue.Equal(dec("175")))
	require.NotNil(t, first.ClientBalance)
	assert.True(t, first.ClientBalance.Outstanding.Equal(dec("175")))

	_, err = f.pay(t, inv.ID, "175.01")
	assert.Equal(t, billing.CodeOverpayment, errorCode(err))

	second, err := f.pay(t, inv.ID, "175")
	require.NoError(t, err)
	assert.Equal(t, "paid", second.Invoice.Status)
	assert.True(t, second.Invoice.BalanceDue.IsZero())
	assert.NotNil(t, second.Invoice.PaidAt)

	undone, err := f.invoices.DeletePayment(ctx, f.org.ID, f.userID, second.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "partial", undone.Invoice.Status)
	assert.Nil(t, undone.Invoice.PaidAt)
	assert.True(t, undone.Invoice.AmountPaid.Equal(dec("100")))

	payments, err := f.invoices.ListPayments(ctx, f.org.ID, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, first.Payment.ID, payments[0].ID)

	balance, err := f.invoices.GetClientBalance(ctx, f.org.ID, clientID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.InvoiceCount)
	assert.Equal(t, 1, balance.CountsByStatus["partial"])
	assert.True(t, balance.TotalPaid.Equal(dec("100")))
}

func TestInvoiceNumbering_ConcurrentCreatesAreGapless(t *testing.T) {
	f := newBillingFixture(t, "SEQ")
	clientID := f.client(t, "Numbering Ltd")

	const n = 10
	numbers := make(chan string, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.createInvoice(clientID)
			if err != nil {
				errs <- err
				return
			}
			numbers <- res.Invoice.InvoiceNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for num := range numbers {
		assert.False(t, seen[num], "duplicate invoice number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		want := billing.FormatInvoiceNumber("SEQ", 2026, int64(i), appbilling.DefaultNumberingConfig().SequenceWidth)
		assert.True(t, seen[want], "missing %s", want)
	}

	org, err := persistence.NewGormOrganizationRepository(f.db.DB).FindByID(context.Background(), f.org.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n+1, org.InvoiceNextNumber)
}

func TestRecordPayment_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	f := newBillingFixture(t, "RACE")
	inv := f.invoice(t, f.client(t, "Race Inc"))
	_, err := f.invoices.UpdateInvoiceStatus(context.Background(), f.org.ID, f.userID, inv.ID, "sent")
	require.NoError(t, err)

	const attempts = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pay(t, inv.ID, "100")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			rejected = append(rejected, errorCode(err))
		}()
	}
	wg.Wait()

	// 275.00 admits two payments of 100.00
	assert.Equal(t, 2, accepted)
	for _, code := range rejected {
		assert.Equal(t, billing.CodeOverpayment, code)
	}

	got, err := f.invoices.GetInvoice(context.Background(), f.org.ID, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(dec("200")))
	assert.True(t, got.BalanceDue.Equal(dec("75")))
	assert.Equal(t, "partial", got.Status)
}

func TestProposeEdit_ReconciliationRoundTrip(t *testing.T) {
	f := newBillingFixture(t, "EDIT")
	ctx := context.Background()
	inv := f.invoice(t, f.client(t, "Edit GmbH"))
	_, err := f.invoices.UpdateInvoiceStatus(ctx, f.org.ID, f.userID, inv.ID, "sent")
	require.NoError(t, err)

	small, err := f.pay(t, inv.ID, "50")
	require.NoError(t, err)
	large, err := f.pay(t, inv.ID, "150")
	require.NoError(t, err)

	// New total 110.00 is below the 200.00 already paid
	edit := appbilling.UpdateInvoiceRequest{
		TaxRate: dec("10"),
		Items:   []appbilling.LineItemInput{{Description: "Reduced scope", Quantity: 1, Rate: dec("100")}},
	}
	proposed, err := f.invoices.ProposeEdit(ctx, f.org.ID, f.userID, inv.ID, edit)
	require.NoError(t, err)
	require.False(t, proposed.Applied)
	require.NotNil(t, proposed.Reconciliation)
	assert.True(t, proposed.Reconciliation.Excess.Equal(dec("90")))
	assert.True(t, proposed.Reconciliation.NewTotal.Equal(dec("110")))

	unchanged, err := f.invoices.GetInvoice(ctx, f.org.ID, inv.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.Total.Equal(dec("275")), "proposal must not persist")

	_, err = f.invoices.ConfirmEdit(ctx, f.org.ID, f.userID, inv.ID, appbilling.ConfirmEditRequest{
		UpdateInvoiceRequest: edit,
		RemovePaymentIDs:     []uuid.UUID{small.Payment.ID},
	})
	assert.Equal(t, billing.CodeRemovalInsufficient, errorCode(err))

	confirmed, err := f.invoices.ConfirmEdit(ctx, f.org.ID, f.userID, inv.ID, appbilling.ConfirmEditRequest{
		UpdateInvoiceRequest: edit,
		RemovePaymentIDs:     []uuid.UUID{large.Payment.ID},
	})
	require.NoError(t, err)
	assert.True(t, confirmed.Invoice.Total.Equal(dec("110")))
	assert.True(t, confirmed.Invoice.AmountPaid.Equal(dec("50")))
	assert.Equal(t, "partial", confirmed.Invoice.Status)

	payments, err := f.invoices.ListPayments(ctx, f.org.ID, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, small.Payment.ID, payments[0].ID)
}

func TestMarkOverdue_OnlyPastDueOpenInvoices(t *testing.T) {
	f := newBillingFixture(t, "LATE")
	ctx := context.Background()
	clientID := f.client(t, "Late Payer")

	draft := f.invoice(t, clientID)
	sent := f.invoice(t, clientID)
	_, err := f.invoices.UpdateInvoiceStatus(ctx, f.org.ID, f.userID, sent.ID, "sent")
	require.NoError(t, err)

	marked, err := f.invoices.MarkOverdue(ctx, f.org.ID, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, marked, "due date itself is not past due")

	marked, err = f.invoices.MarkOverdue(ctx, f.org.ID, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := f.invoices.GetInvoice(ctx, f.org.ID, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "overdue", got.Status)
	got, err = f.invoices.GetInvoice(ctx, f.org.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Status)
}

func TestTenantIsolation(t *testing.T) {
	a := newBillingFixture(t, "TNA")
	b := newBillingFixture(t, "TNB")
	ctx := context.Background()

	inv := a.invoice(t, a.client(t, "Tenant A Client"))

	_, err := b.invoices.GetInvoice(ctx, b.org.ID, inv.ID)
	assert.Equal(t, billing.CodeInvoiceNotFound, errorCode(err))
	_, err = b.pay(t, inv.ID, "10")
	assert.Equal(t, billing.CodeInvoiceNotFound, errorCode(err))

	listed, total, err := b.invoices.ListInvoices(ctx, b.org.ID, appbilling.InvoiceListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, listed)

	_, err = b.invoices.CreateInvoice(ctx, b.org.ID, b.userID, appbilling.CreateInvoiceRequest{
		ClientID: inv.ClientID,
		Items:    []appbilling.LineItemInput{{Description: "x", Quantity: 1, Rate: dec("1")}},
	})
	assert.Equal(t, billing.CodeClientNotFound, errorCode(err))
}

func TestClientDelete_BlockedByInvoices(t *testing.T) {
	f := newBillingFixture(t, "CDEL")
	ctx := context.Background()
	clientID := f.client(t, "Sticky Client")
	inv := f.invoice(t, clientID)

	err := f.clients.Delete(ctx, f.org.ID, f.userID, clientID)
	assert.Equal(t, billing.CodeClientHasInvoices, errorCode(err))

	balance, err := f.invoices.DeleteInvoice(ctx, f.org.ID, f.userID, inv.ID)
	require.NoError(t, err)
	assert.Zero(t, balance.InvoiceCount)

	require.NoError(t, f.clients.Delete(ctx, f.org.ID, f.userID, clientID))
	_, err = f.clients.Get(ctx, f.org.ID, clientID)
	assert.Equal(t, billing.CodeClientNotFound, errorCode(err))
}

func TestAuditTrail_WrittenThroughEventBus(t *testing.T) {
	db := NewTestDB(t)
	log := zap.NewNop()
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	bus := event.NewInMemoryEventBus(log)
	event.SubscribeIdempotent(bus, store, shared.DefaultIdempotencyConfig(), log, event.NamedHandler{
		Name:    "audit",
		Handler: appbilling.NewAuditHandler(persistence.NewGormAuditLogRepository(db.DB), nil, log),
	})

	f := newBillingFixture(t, "AUD", appbilling.WithEventPublisher(bus))
	inv := f.invoice(t, f.client(t, "Audited"))
	_, err := f.invoices.UpdateInvoiceStatus(context.Background(), f.org.ID, f.userID, inv.ID, "sent")
	require.NoError(t, err)

	var actions []string
	require.NoError(t, db.DB.Raw(
		"SELECT action FROM audit_logs WHERE tenant_id = ? AND entity_id = ? ORDER BY occurred_at",
		f.org.ID, inv.ID,
	).Scan(&actions).Error)
	assert.Contains(t, actions, billing.EventTypeInvoiceCreated)
	assert.Contains(t, actions, billing.EventTypeInvoiceStatusChanged)
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var reconcile *billing.ReconciliationRequiredError
	if errors.As(err, &reconcile) {
		return reconcile.Code
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return err.Error()
}
