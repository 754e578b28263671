package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ragpay/server/internal/config"
	"github.com/ragpay/server/internal/dbpool"
)

// Postgres stores chunk ownership in a chunk_purchases table keyed by
// (user_address, chunk_id).
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects, applies pool settings, and ensures the schema exists.
func NewPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	db, err := dbpool.Open(cfg.PostgresURL, cfg.PostgresPool)
	if err != nil {
		return nil, err
	}

	p := &Postgres{db: db}
	if err := p.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) createTables() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunk_purchases (
			user_address TEXT NOT NULL,
			chunk_id     TEXT NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_address, chunk_id)
		)`)
	if err != nil {
		return fmt.Errorf("creating chunk_purchases table: %w", err)
	}
	return nil
}

func (p *Postgres) PaidSubset(ctx context.Context, wallet string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT chunk_id FROM chunk_purchases WHERE user_address = $1 AND chunk_id = ANY($2)`,
		wallet, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying chunk_purchases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk_purchases row: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk_purchases rows: %w", err)
	}
	return result, nil
}

func (p *Postgres) Record(ctx context.Context, wallet string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chunk_purchases (user_address, chunk_id)
		 SELECT $1, unnest($2::text[])
		 ON CONFLICT DO NOTHING`,
		wallet, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("recording %d purchases: %w", len(ids), err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
