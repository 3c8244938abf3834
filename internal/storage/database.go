// internal/storage/database.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver registration

	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// catalogDDL bootstraps the two internal tables: the schema catalog and the
// single-row settings table holding the permission sync state.
// Idempotent and applied on every startup.
const catalogDDL = `
CREATE TABLE IF NOT EXISTS _schemas (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    document JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS _settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    permissions_hash TEXT NOT NULL DEFAULT '',
    permissions_synced_at TIMESTAMPTZ
);

INSERT INTO _settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`

// ConnectDB initializes the connection pool against the configured Postgres
// instance and ensures the internal catalog tables exist.
func ConnectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	customLog.Printf("Storage: Initializing database pool")

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		customLog.Warnf("Storage: Failed to open database: %v", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection is working
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to ping database: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	customLog.Println("Storage: Database connection successful.")

	if _, err = db.ExecContext(ctx, catalogDDL); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to ensure catalog tables: %v", err)
		return nil, fmt.Errorf("failed to ensure catalog tables: %w", err)
	}
	customLog.Println("Storage: Catalog tables ensured.")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// withTx runs fn inside one transaction, rolling back on error. Multi-statement
// schema migrations in particular must apply atomically or not at all.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			customLog.Warnf("Storage: Rollback failed: %v (after: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
