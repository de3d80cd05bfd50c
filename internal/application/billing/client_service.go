package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ClientListFilter narrows client listings
type ClientListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir"`
}

// ClientService manages the clients invoices are billed to
type ClientService struct {
	scope     TransactionScope
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(scope TransactionScope, opts ...Option) *ClientService {
	o := buildOptions(opts)
	return &ClientService{
		scope:     scope,
		publisher: o.publisher,
		metrics:   o.metrics,
		logger:    o.logger,
	}
}

// Create creates a new client
func (s *ClientService) Create(ctx context.Context, tenantID, userID uuid.UUID, req ClientRequest) (*ClientResponse, error) {
	client, err := billing.NewClient(tenantID, req.details(), &userID)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.ClientRepo().Create(ctx, client)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("client created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("client_id", client.ID.String()),
	)
	publishEvents(ctx, s.publisher, s.metrics, s.logger, client)
	resp := ToClientResponse(client)
	return &resp, nil
}

// Update replaces a client's details
func (s *ClientService) Update(ctx context.Context, tenantID, userID, clientID uuid.UUID, req ClientRequest) (*ClientResponse, error) {
	var client *billing.Client
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		loaded, err := repos.ClientRepo().FindByIDForTenant(ctx, tenantID, clientID)
		if err != nil {
			return err
		}
		if err := loaded.Update(req.details(), &userID); err != nil {
			return err
		}
		if err := repos.ClientRepo().SaveWithLock(ctx, loaded); err != nil {
			return err
		}
		client = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.publisher, s.metrics, s.logger, client)
	resp := ToClientResponse(client)
	return &resp, nil
}

// Delete removes a client that has no invoices
func (s *ClientService) Delete(ctx context.Context, tenantID, userID, clientID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "client", "delete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrClientID, clientID.String())

	var client *billing.Client
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		loaded, err := repos.ClientRepo().FindByIDForTenant(ctx, tenantID, clientID)
		if err != nil {
			return err
		}
		count, err := repos.InvoiceRepo().CountByClient(ctx, tenantID, clientID)
		if err != nil {
			return err
		}
		if err := loaded.MarkDeleted(count, &userID); err != nil {
			return err
		}
		if err := repos.ClientRepo().Delete(ctx, tenantID, clientID); err != nil {
			return err
		}
		client = loaded
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	publishEvents(ctx, s.publisher, s.metrics, s.logger, client)
	return nil
}

// Get returns one client
func (s *ClientService) Get(ctx context.Context, tenantID, clientID uuid.UUID) (*ClientResponse, error) {
	var client *billing.Client
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		client, err = repos.ClientRepo().FindByIDForTenant(ctx, tenantID, clientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(client)
	return &resp, nil
}

// List returns a page of clients ordered by name unless asked otherwise
func (s *ClientService) List(ctx context.Context, tenantID uuid.UUID, filter ClientListFilter) ([]ClientResponse, int64, error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	if f.OrderBy == "" {
		f.OrderBy = "name"
		f.OrderDir = "asc"
	}

	var clients []billing.Client
	var total int64
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		clients, total, err = repos.ClientRepo().FindAllForTenant(ctx, tenantID, f)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]ClientResponse, len(clients))
	for i := range clients {
		out[i] = ToClientResponse(&clients[i])
	}
	return out, total, nil
}
