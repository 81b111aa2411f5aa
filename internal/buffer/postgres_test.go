package buffer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// setupTestPostgres creates a PostgreSQL testcontainer and applies the schema.
func setupTestPostgres(t *testing.T) (*PostgresStore, func()) {
	if os.Getenv("TEST_POSTGRES") == "" {
		t.Skip("set TEST_POSTGRES=1 to run container-backed storage tests")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("collector_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := applySchema(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to apply schema: %v", err)
	}

	store, err := NewPostgresStore(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return store, cleanup
}

func applySchema(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "000001_create_buffer_records.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store, cleanup := setupTestPostgres(t)
	defer cleanup()
	ctx := context.Background()

	for _, payload := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		require.NoError(t, store.Append(ctx, telemetry.CategoryEvents, []byte(payload)))
	}

	payloads, err := store.List(ctx, telemetry.CategoryEvents)
	require.NoError(t, err)
	require.Len(t, payloads, 3)
	assert.JSONEq(t, `{"n":1}`, string(payloads[0]))
	assert.JSONEq(t, `{"n":3}`, string(payloads[2]))

	require.NoError(t, store.Clear(ctx, telemetry.CategoryEvents))

	payloads, err = store.List(ctx, telemetry.CategoryEvents)
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestPostgresStoreCategoryIsolation(t *testing.T) {
	store, cleanup := setupTestPostgres(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, telemetry.CategoryMetrics, []byte(`{"name":"m"}`)))
	require.NoError(t, store.Append(ctx, telemetry.CategoryTraces, []byte(`{"outcome":"ok"}`)))

	require.NoError(t, store.Clear(ctx, telemetry.CategoryMetrics))

	metricPayloads, err := store.List(ctx, telemetry.CategoryMetrics)
	require.NoError(t, err)
	assert.Empty(t, metricPayloads)

	traces, err := store.List(ctx, telemetry.CategoryTraces)
	require.NoError(t, err)
	assert.Len(t, traces, 1)
}
