package itf

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
)

// Env is one test's database world: a dedicated database, a seeded tenant
// and user, and a context carrying the pool plus identity the way the
// middleware stack would.
type Env struct {
	Ctx      context.Context
	Pool     *pgxpool.Pool
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// DatabaseName derives a per-test database name from the test's full name.
func DatabaseName(t *testing.T) string {
	t.Helper()
	name := strings.ToLower(t.Name())
	name = strings.NewReplacer("/", "_", " ", "_", "#", "_", "-", "_").Replace(name)
	if len(name) > 50 {
		name = name[:50]
	}
	return "test_" + name
}

// CreateDB drops and recreates the test database through the maintenance
// connection.
func CreateDB(t *testing.T, dbName string) {
	t.Helper()
	conf := configuration.Use()
	admin, err := sql.Open("postgres", adminDSN(conf))
	if err != nil {
		t.Fatalf("open admin connection: %v", err)
	}
	defer admin.Close()

	if _, err := admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)); err != nil {
		t.Fatalf("drop test database: %v", err)
	}
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Fatalf("create test database: %v", err)
	}
}

// Setup builds a fresh database for the test, applies the given schema
// files, seeds a tenant and returns the wired environment. Everything is
// torn down via t.Cleanup.
func Setup(t *testing.T, schemas ...string) *Env {
	t.Helper()
	conf := configuration.Use()

	dbName := DatabaseName(t)
	CreateDB(t, dbName)

	pool, err := pgxpool.New(context.Background(), testDSN(conf, dbName))
	if err != nil {
		t.Fatalf("create test pool: %v", err)
	}
	t.Cleanup(pool.Close)

	ctx := composables.WithPool(context.Background(), pool)
	for _, schema := range schemas {
		if _, err := pool.Exec(ctx, schema); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	tenantID := uuid.New()
	userID := uuid.New()
	if _, err := pool.Exec(ctx,
		"INSERT INTO tenants (id, name) VALUES ($1, $2)",
		tenantID, "test tenant",
	); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	ctx = composables.WithTenantID(ctx, tenantID)
	ctx = composables.WithUserID(ctx, userID)
	return &Env{Ctx: ctx, Pool: pool, TenantID: tenantID, UserID: userID}
}

// InTx runs fn inside a transaction that always rolls back, for tests that
// must not leak writes into the shared schema state.
func (e *Env) InTx(t *testing.T, fn func(ctx context.Context)) {
	t.Helper()
	tx, err := e.Pool.Begin(e.Ctx)
	if err != nil {
		t.Fatalf("begin test transaction: %v", err)
	}
	defer func() {
		_ = tx.Rollback(e.Ctx)
	}()
	fn(composables.WithTx(e.Ctx, tx))
}

// TxContext returns a context carrying an open transaction; the transaction
// is rolled back on cleanup.
func (e *Env) TxContext(t *testing.T) (context.Context, pgx.Tx) {
	t.Helper()
	tx, err := e.Pool.Begin(e.Ctx)
	if err != nil {
		t.Fatalf("begin test transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(e.Ctx)
	})
	return composables.WithTx(e.Ctx, tx), tx
}

func adminDSN(conf *configuration.Configuration) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		conf.Database.Host, conf.Database.Port, conf.Database.User, conf.Database.Password,
	)
}

func testDSN(conf *configuration.Configuration, dbName string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		conf.Database.User, conf.Database.Password, conf.Database.Host, conf.Database.Port, dbName,
	)
}
