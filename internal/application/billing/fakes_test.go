package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memData is the state of the in-memory database. Values are stored by copy
// so callers cannot mutate rows without going through a repository.
type memData struct {
	invoices map[uuid.UUID]billing.Invoice
	payments map[uuid.UUID]billing.Payment
	clients  map[uuid.UUID]billing.Client
	orgs     map[uuid.UUID]billing.Organization
}

func (d memData) clone() memData {
	c := memData{
		invoices: make(map[uuid.UUID]billing.Invoice, len(d.invoices)),
		payments: make(map[uuid.UUID]billing.Payment, len(d.payments)),
		clients:  make(map[uuid.UUID]billing.Client, len(d.clients)),
		orgs:     make(map[uuid.UUID]billing.Organization, len(d.orgs)),
	}
	for k, v := range d.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.orgs {
		c.orgs[k] = v
	}
	return c
}

// memDB backs the fake repositories. Failed Execute calls roll back.
type memDB struct {
	mu   sync.Mutex
	data memData

	// invoiceConflicts makes the next n invoice saves fail with a conflict
	invoiceConflicts int
	invoiceSaves     int
	executions       int
}

func newMemDB() *memDB {
	return &memDB{data: memData{
		invoices: map[uuid.UUID]billing.Invoice{},
		payments: map[uuid.UUID]billing.Payment{},
		clients:  map[uuid.UUID]billing.Client{},
		orgs:     map[uuid.UUID]billing.Organization{},
	}}
}

func copyInvoice(inv billing.Invoice) billing.Invoice {
	inv.ClearDomainEvents()
	inv.Items = append([]billing.InvoiceItem(nil), inv.Items...)
	return inv
}

func (db *memDB) addOrg(name string) uuid.UUID {
	id := uuid.New()
	db.data.orgs[id] = billing.Organization{
		ID:                id,
		Name:              name,
		Email:             "billing@" + name + ".test",
		InvoicePrefix:     billing.DefaultInvoicePrefix,
		InvoiceNextNumber: 1,
		Locale:            "en-US",
	}
	return id
}

func (db *memDB) addClient(tenantID uuid.UUID, name, email string) uuid.UUID {
	c, err := billing.NewClient(tenantID, billing.ClientDetails{Name: name, Email: email}, nil)
	if err != nil {
		panic(err)
	}
	c.ClearDomainEvents()
	db.data.clients[c.ID] = *c
	return c.ID
}

func (db *memDB) invoice(id uuid.UUID) billing.Invoice {
	db.mu.Lock()
	defer db.mu.Unlock()
	return copyInvoice(db.data.invoices[id])
}

func (db *memDB) ledger(invoiceID uuid.UUID) []billing.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []billing.Payment
	for _, p := range db.data.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out
}

// memScope is a TransactionScope over memDB with rollback on error
type memScope struct {
	db *memDB
}

func (s memScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.db.mu.Lock()
	snapshot := s.db.data.clone()
	s.db.executions++
	s.db.mu.Unlock()

	if err := fn(memRepos{db: s.db}); err != nil {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
		return err
	}
	return nil
}

type memRepos struct {
	db *memDB
}

func (r memRepos) InvoiceRepo() billing.InvoiceRepository           { return &memInvoiceRepo{db: r.db} }
func (r memRepos) PaymentRepo() billing.PaymentRepository           { return &memPaymentRepo{db: r.db} }
func (r memRepos) ClientRepo() billing.ClientRepository             { return &memClientRepo{db: r.db} }
func (r memRepos) OrganizationRepo() billing.OrganizationRepository { return &memOrgRepo{db: r.db} }

type memInvoiceRepo struct {
	db *memDB
}

func (r *memInvoiceRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	inv, ok := r.db.data.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, billing.ErrInvoiceNotFound
	}
	cp := copyInvoice(inv)
	return &cp, nil
}

func (r *memInvoiceRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *memInvoiceRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.db.data.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.ClientID != nil && inv.ClientID != *filter.ClientID {
			continue
		}
		cp := copyInvoice(inv)
		cp.Items = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber > out[j].InvoiceNumber })
	total := int64(len(out))

	start := (filter.Page - 1) * filter.PageSize
	if start > len(out) {
		start = len(out)
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memInvoiceRepo) FindByClient(_ context.Context, tenantID, clientID uuid.UUID) ([]billing.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.db.data.invoices {
		if inv.TenantID == tenantID && inv.ClientID == clientID {
			cp := copyInvoice(inv)
			cp.Items = nil
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) FindDueBefore(_ context.Context, tenantID uuid.UUID, asOf time.Time) ([]billing.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.db.data.invoices {
		if inv.TenantID == tenantID && inv.IsOverdueAt(asOf) {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) CountByClient(_ context.Context, tenantID, clientID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, inv := range r.db.data.invoices {
		if inv.TenantID == tenantID && inv.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *billing.Invoice) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.data.invoices {
		if existing.TenantID == inv.TenantID && existing.InvoiceNumber == inv.InvoiceNumber {
			return shared.NewConflictError(billing.CodeInvoiceNumberTaken, "Invoice number already exists")
		}
	}
	r.db.data.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(_ context.Context, inv *billing.Invoice, replaceItems bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.invoiceSaves++
	if r.db.invoiceConflicts > 0 {
		r.db.invoiceConflicts--
		return shared.NewConflictError(billing.CodeVersionConflict, "Invoice was modified concurrently")
	}
	stored, ok := r.db.data.invoices[inv.ID]
	if !ok || stored.TenantID != inv.TenantID {
		return billing.ErrInvoiceNotFound
	}
	if stored.Version != inv.Version-1 {
		return shared.NewConflictError(billing.CodeVersionConflict, "Invoice was modified concurrently")
	}
	cp := copyInvoice(*inv)
	if !replaceItems {
		cp.Items = stored.Items
	}
	r.db.data.invoices[inv.ID] = cp
	return nil
}

func (r *memInvoiceRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	inv, ok := r.db.data.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return billing.ErrInvoiceNotFound
	}
	delete(r.db.data.invoices, id)
	return nil
}

type memPaymentRepo struct {
	db *memDB
}

func (r *memPaymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.data.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, billing.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *memPaymentRepo) FindByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []billing.Payment
	for _, p := range r.db.data.payments {
		if p.TenantID == tenantID && p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	billing.SortPaymentsByDateDesc(out)
	return out, nil
}

func (r *memPaymentRepo) Create(_ context.Context, p *billing.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.data.payments[p.ID] = *p
	return nil
}

func (r *memPaymentRepo) DeleteByIDs(_ context.Context, tenantID, invoiceID uuid.UUID, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		p, ok := r.db.data.payments[id]
		if ok && p.TenantID == tenantID && p.InvoiceID == invoiceID {
			delete(r.db.data.payments, id)
		}
	}
	return nil
}

func (r *memPaymentRepo) DeleteByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.data.payments {
		if p.TenantID == tenantID && p.InvoiceID == invoiceID {
			delete(r.db.data.payments, id)
		}
	}
	return nil
}

type memClientRepo struct {
	db *memDB
}

func (r *memClientRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*billing.Client, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.data.clients[id]
	if !ok || c.TenantID != tenantID {
		return nil, billing.ErrClientNotFound
	}
	c.ClearDomainEvents()
	return &c, nil
}

func (r *memClientRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.Client, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []billing.Client
	for _, c := range r.db.data.clients {
		if c.TenantID == tenantID {
			c.ClearDomainEvents()
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	if filter.PageSize > 0 && len(out) > filter.PageSize {
		out = out[:filter.PageSize]
	}
	return out, total, nil
}

func (r *memClientRepo) Create(_ context.Context, c *billing.Client) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *c
	cp.ClearDomainEvents()
	r.db.data.clients[c.ID] = cp
	return nil
}

func (r *memClientRepo) SaveWithLock(_ context.Context, c *billing.Client) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.data.clients[c.ID]
	if !ok {
		return billing.ErrClientNotFound
	}
	if stored.Version != c.Version-1 {
		return shared.NewConflictError(billing.CodeVersionConflict, "Client was modified concurrently")
	}
	cp := *c
	cp.ClearDomainEvents()
	r.db.data.clients[c.ID] = cp
	return nil
}

func (r *memClientRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.data.clients[id]
	if !ok || c.TenantID != tenantID {
		return billing.ErrClientNotFound
	}
	delete(r.db.data.clients, id)
	return nil
}

type memOrgRepo struct {
	db *memDB
}

func (r *memOrgRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Organization, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	org, ok := r.db.data.orgs[id]
	if !ok {
		return nil, billing.ErrOrganizationNotFound
	}
	return &org, nil
}

func (r *memOrgRepo) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.db.data.orgs))
	for id := range r.db.data.orgs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memOrgRepo) AllocateInvoiceNumber(_ context.Context, id uuid.UUID) (string, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	org, ok := r.db.data.orgs[id]
	if !ok {
		return "", 0, billing.ErrOrganizationNotFound
	}
	seq := org.InvoiceNextNumber
	org.InvoiceNextNumber++
	r.db.data.orgs[id] = org
	return org.Prefix(), seq, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// recordingMetrics counts calls per method
type recordingMetrics struct {
	mu              sync.Mutex
	created         int
	paymentsRecord  int
	paymentsDeleted map[string]int
	statusChanges   []string
	reconciliations int
	sideChannel     map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{paymentsDeleted: map[string]int{}, sideChannel: map[string]int{}}
}

func (m *recordingMetrics) RecordInvoiceCreated(context.Context, uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) RecordPaymentRecorded(context.Context, uuid.UUID, string, decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentsRecord++
}

func (m *recordingMetrics) RecordPaymentsDeleted(_ context.Context, _ uuid.UUID, reason string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentsDeleted[reason] += count
}

func (m *recordingMetrics) RecordStatusChange(_ context.Context, _ uuid.UUID, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusChanges = append(m.statusChanges, from+"->"+to)
}

func (m *recordingMetrics) RecordReconciliationRequired(context.Context, uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciliations++
}

func (m *recordingMetrics) RecordSideChannelFailure(_ context.Context, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sideChannel[channel]++
}

// MockEmailEnqueuer is a mock implementation of EmailEnqueuer
type MockEmailEnqueuer struct {
	mock.Mock
}

func (m *MockEmailEnqueuer) EnqueueInvoiceEmail(ctx context.Context, payload InvoiceEmailPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// MockInvoiceMailSender is a mock implementation of InvoiceMailSender
type MockInvoiceMailSender struct {
	mock.Mock
}

func (m *MockInvoiceMailSender) SendInvoice(ctx context.Context, mail InvoiceMail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

// MockAuditLogRepository is a mock implementation of billing.AuditLogRepository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *billing.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) FindByEntity(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]billing.AuditEntry, error) {
	args := m.Called(ctx, tenantID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.AuditEntry), args.Error(1)
}

// mapIdempotencyStore is an IdempotencyStore without expiry
type mapIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMapIdempotencyStore() *mapIdempotencyStore {
	return &mapIdempotencyStore{seen: map[string]bool{}}
}

func (s *mapIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *mapIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key], nil
}

func (s *mapIdempotencyStore) Close() error { return nil }
