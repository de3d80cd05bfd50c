package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	actor := uuid.New()
	c, err := NewClient(uuid.New(), ClientDetails{Name: " Acme Ltd ", Email: "billing@acme.test"}, &actor)
	require.NoError(t, err)

	assert.Equal(t, "Acme Ltd", c.Name)
	assert.Equal(t, &actor, c.CreatedBy)
	events := c.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeClientCreated, events[0].EventType())
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(uuid.New(), ClientDetails{Name: "   "}, nil)
	requireCode(t, err, "INVALID_CLIENT_NAME")

	_, err = NewClient(uuid.New(), ClientDetails{Name: "Acme", Email: "not-an-email"}, nil)
	requireCode(t, err, "INVALID_EMAIL")
}

func TestClient_Update(t *testing.T) {
	c, err := NewClient(uuid.New(), ClientDetails{Name: "Acme"}, nil)
	require.NoError(t, err)
	c.ClearDomainEvents()

	require.NoError(t, c.Update(ClientDetails{Name: "Acme Corp", Phone: "555-0100"}, nil))
	assert.Equal(t, "Acme Corp", c.Name)
	assert.Equal(t, 2, c.GetVersion())

	events := c.GetDomainEvents()
	require.Len(t, events, 1)
	changed := events[0].(*ClientChangedEvent)
	assert.Equal(t, "Acme", changed.Before.(ClientSnapshot).Name)
	assert.Equal(t, "Acme Corp", changed.After.(ClientSnapshot).Name)
}

func TestClient_MarkDeleted(t *testing.T) {
	c, err := NewClient(uuid.New(), ClientDetails{Name: "Acme"}, nil)
	require.NoError(t, err)

	err = c.MarkDeleted(2, nil)
	requireCode(t, err, CodeClientHasInvoices)
	assert.True(t, shared.IsConflict(err))

	require.NoError(t, c.MarkDeleted(0, nil))
}
