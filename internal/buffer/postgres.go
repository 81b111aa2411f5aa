package buffer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// PostgresStore persists category collections in a buffer_records table,
// for deployments that already run Postgres and want buffered telemetry to
// survive node loss. Schema lives in migrations/.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, category telemetry.Category, payload []byte) error {
	query := `INSERT INTO buffer_records (category, payload) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, query, string(category), payload); err != nil {
		return fmt.Errorf("insert %s record: %w", category, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, category telemetry.Category) ([][]byte, error) {
	query := `SELECT payload FROM buffer_records WHERE category = $1 ORDER BY seq`
	rows, err := s.pool.Query(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("select %s records: %w", category, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", category, err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", category, err)
	}
	return payloads, nil
}

func (s *PostgresStore) Clear(ctx context.Context, category telemetry.Category) error {
	query := `DELETE FROM buffer_records WHERE category = $1`
	if _, err := s.pool.Exec(ctx, query, string(category)); err != nil {
		return fmt.Errorf("delete %s records: %w", category, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
