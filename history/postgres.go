package history

import (
	"context"
	"fmt"

	"github.com/aouyang1/forecastd/report"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool is the subset of a pgx pool used by the PostgreSQL stores.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS forecast_reports (
	id UUID PRIMARY KEY,
	owner TEXT NOT NULL,
	filename TEXT NOT NULL,
	model_used TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	plot TEXT NOT NULL,
	summary TEXT NOT NULL,
	bundle JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS forecast_reports_owner_created_idx ON forecast_reports (owner, created_at)`

	lockOwnerSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	insertSQL = `INSERT INTO forecast_reports (id, owner, filename, model_used, created_at, plot, summary, bundle)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listAscSQL  = `SELECT bundle FROM forecast_reports WHERE owner = $1 ORDER BY created_at ASC, id`
	listDescSQL = `SELECT bundle FROM forecast_reports WHERE owner = $1 ORDER BY created_at DESC, id`
)

// PostgresStore keeps bundles in a forecast_reports table. The full bundle is stored as JSONB
// next to the columns the original history listing exposed.
type PostgresStore struct {
	db DBPool
}

func NewPostgresStore(db DBPool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table and index if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("unable to migrate forecast_reports, %w", err)
	}
	return nil
}

// Save inserts the bundle while holding a transaction scoped advisory lock on the owner.
func (s *PostgresStore) Save(ctx context.Context, b *report.Bundle) error {
	if err := validate(b); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("unable to encode bundle, %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("unable to begin transaction, %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockOwnerSQL, b.Owner); err != nil {
		return fmt.Errorf("unable to lock owner history, %w", err)
	}
	_, err = tx.Exec(ctx, insertSQL,
		b.ID, b.Owner, b.Filename, string(b.Variant), b.CreatedAt, b.ChartLocator, b.Narrative, data,
	)
	if err != nil {
		return fmt.Errorf("unable to insert bundle, %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("unable to commit bundle, %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, owner string, order Order) ([]report.Bundle, error) {
	query := listDescSQL
	if order == OrderAsc {
		query = listAscSQL
	}

	rows, err := s.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("unable to query history, %w", err)
	}
	defer rows.Close()

	bundles := []report.Bundle{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("unable to scan bundle, %w", err)
		}
		var b report.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("unable to decode bundle, %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to read history, %w", err)
	}
	return bundles, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
