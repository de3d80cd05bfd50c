// Package integration runs the billing services against real PostgreSQL and
// Redis containers. Every test is skipped with -short.
package integration

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// One PostgreSQL container per package run. Tests isolate themselves
	// by creating their own organization.
	pgOnce      sync.Once
	pgContainer testcontainers.Container
	pgDSN       string
	pgErr       error

	redisOnce      sync.Once
	redisContainer testcontainers.Container
	redisAddr      string
	redisErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	if redisContainer != nil {
		_ = redisContainer.Terminate(ctx)
	}
	os.Exit(code)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// TestDB is a migrated PostgreSQL database
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
}

// NewTestDB returns a connection to the shared, migrated container
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("invoicing_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgContainer = container
		pgDSN, pgErr = container.ConnectionString(ctx, "sslmode=disable")
		if pgErr == nil {
			pgErr = runMigrations(pgDSN)
		}
	})
	require.NoError(t, pgErr, "Failed to start PostgreSQL container")

	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(pgDSN), gormConfig)
	require.NoError(t, err, "Failed to connect to database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, SqlDB: sqlDB, DSN: pgDSN}
}

// runMigrations applies the embedded schema. The migrator closes its own
// connection when done.
func runMigrations(dsn string) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

// CreateOrganization inserts a fresh tenant with the given invoice prefix
func (tdb *TestDB) CreateOrganization(t *testing.T, prefix string) *billing.Organization {
	t.Helper()
	org := &billing.Organization{
		ID:                uuid.New(),
		Name:              "Org " + prefix,
		Email:             "billing@" + prefix + ".test",
		InvoicePrefix:     prefix,
		InvoiceNextNumber: 1,
		Locale:            "en-US",
	}
	require.NoError(t, persistence.NewGormOrganizationRepository(tdb.DB).Upsert(context.Background(), org))
	return org
}

// NewRedisAddr starts (once) a Redis container and returns host:port
func NewRedisAddr(t *testing.T) string {
	t.Helper()
	skipShort(t)

	redisOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor: wait.ForLog("Ready to accept connections").
					WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			redisErr = err
			return
		}
		redisContainer = container
		redisAddr, redisErr = container.Endpoint(ctx, "")
	})
	require.NoError(t, redisErr, "Failed to start Redis container")
	return redisAddr
}
