// Package dbpool opens PostgreSQL connection pools with the configured
// limits applied and the connection verified.
package dbpool

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/ragpay/server/internal/config"
)

// Open connects to PostgreSQL, applies the pool settings, and verifies the
// connection with a ping. The caller owns the returned pool and closes it on
// shutdown; sql.DB.Close is safe to call more than once.
func Open(connectionString string, poolConfig config.PostgresPoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if poolConfig.MaxOpenConns > 0 {
		db.SetMaxOpenConns(poolConfig.MaxOpenConns)
	}
	if poolConfig.MaxIdleConns > 0 {
		db.SetMaxIdleConns(poolConfig.MaxIdleConns)
	}
	if poolConfig.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(poolConfig.ConnMaxLifetime.Duration)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}
