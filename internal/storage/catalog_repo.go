// internal/storage/catalog_repo.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pulsar-base/pulsar-backend/internal/core"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
)

// Postgres error codes we map to caller-facing errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// CreateSchema persists a new table schema and creates its physical table and
// join tables in one transaction.
func CreateSchema(ctx context.Context, db *sql.DB, s *schema.TableSchema) error {
	document, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode schema document: %w", err)
	}

	err = withTx(ctx, db, func(tx *sql.Tx) error {
		insertSQL := `INSERT INTO _schemas (id, name, document, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, insertSQL, s.ID, core.NormalizeName(s.Name), document, s.CreatedAt, s.UpdatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return ErrSchemaExists
			}
			return fmt.Errorf("database error registering schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, schema.CreateTableSQL(s)); err != nil {
			customLog.Warnf("Storage: Failed CREATE TABLE for '%s': %v", s.Name, err)
			return fmt.Errorf("failed to create table: %w", err)
		}
		for _, stmt := range schema.JoinTableSQLs(s) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				customLog.Warnf("Storage: Failed join table DDL for '%s': %v", s.Name, err)
				return fmt.Errorf("failed to create join table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	customLog.Printf("Storage: Created schema '%s' (%s)", s.Name, s.ID)
	return nil
}

// GetSchemaByName loads one schema document by its (normalized) table name.
func GetSchemaByName(ctx context.Context, db *sql.DB, name string) (*schema.TableSchema, error) {
	var document []byte
	query := `SELECT document FROM _schemas WHERE name = $1 LIMIT 1`
	err := db.QueryRowContext(ctx, query, core.NormalizeName(name)).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSchemaNotFound
		}
		customLog.Warnf("Storage: Failed to load schema '%s': %v", name, err)
		return nil, fmt.Errorf("database error loading schema: %w", err)
	}

	var s schema.TableSchema
	if err := json.Unmarshal(document, &s); err != nil {
		customLog.Warnf("Storage: Malformed schema document for '%s': %v", name, err)
		return nil, fmt.Errorf("malformed schema document: %w", err)
	}
	return &s, nil
}

// ListSchemas loads every schema document, ordered by name.
func ListSchemas(ctx context.Context, db *sql.DB) ([]*schema.TableSchema, error) {
	rows, err := db.QueryContext(ctx, `SELECT document FROM _schemas ORDER BY name`)
	if err != nil {
		customLog.Warnf("Storage: Error listing schemas: %v", err)
		return nil, fmt.Errorf("database error listing schemas: %w", err)
	}
	defer rows.Close()

	schemas := make([]*schema.TableSchema, 0)
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed processing schema list: %w", err)
		}
		var s schema.TableSchema
		if err := json.Unmarshal(document, &s); err != nil {
			return nil, fmt.Errorf("malformed schema document: %w", err)
		}
		schemas = append(schemas, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading schema list: %w", err)
	}
	return schemas, nil
}

// UpdateSchema applies a compiled migration: every DDL and data-migration
// statement plus the catalog row update run in one transaction.
func UpdateSchema(ctx context.Context, db *sql.DB, current *schema.TableSchema, migration *schema.Migration) error {
	document, err := json.Marshal(migration.Updated)
	if err != nil {
		return fmt.Errorf("failed to encode schema document: %w", err)
	}

	err = withTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range migration.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				customLog.Warnf("Storage: Migration statement failed for '%s': %v\nSQL: %s", current.Name, err, stmt)
				return fmt.Errorf("migration statement failed: %w", err)
			}
		}
		updateSQL := `UPDATE _schemas SET name = $1, document = $2, updated_at = $3 WHERE id = $4`
		result, err := tx.ExecContext(ctx, updateSQL,
			core.NormalizeName(migration.Updated.Name), document, migration.Updated.UpdatedAt, current.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return ErrSchemaExists
			}
			return fmt.Errorf("database error updating schema: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed confirming schema update: %w", err)
		}
		if affected == 0 {
			return ErrSchemaNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	customLog.Printf("Storage: Updated schema '%s' (%d statements)", migration.Updated.Name, len(migration.Statements))
	return nil
}

// UpdateSchemaPermissions rewrites only the permissions block of a schema
// document. Used by the sync worker; no DDL is involved.
func UpdateSchemaPermissions(ctx context.Context, db *sql.DB, s *schema.TableSchema, perms schema.Permissions) error {
	updated := s.Clone()
	updated.Permissions = perms
	document, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to encode schema document: %w", err)
	}
	result, err := db.ExecContext(ctx,
		`UPDATE _schemas SET document = $1, updated_at = now() WHERE id = $2`, document, s.ID)
	if err != nil {
		customLog.Warnf("Storage: Failed permissions update for '%s': %v", s.Name, err)
		return fmt.Errorf("database error updating permissions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming permissions update: %w", err)
	}
	if affected == 0 {
		return ErrSchemaNotFound
	}
	return nil
}

// DeleteSchema drops every join table, then the owning table, then the
// catalog row, in that order so dependent join tables never outlive their
// parent. Runs in one transaction.
func DeleteSchema(ctx context.Context, db *sql.DB, s *schema.TableSchema) error {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		for _, rf := range s.ManyRelations() {
			join := schema.JoinTableName(s.Name, rf.Name, rf.Table)
			if _, err := tx.ExecContext(ctx, schema.DropTableSQL(join)); err != nil {
				customLog.Warnf("Storage: Failed DROP join table '%s': %v", join, err)
				return fmt.Errorf("failed to drop join table: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, schema.DropTableSQL(s.Name)); err != nil {
			customLog.Warnf("Storage: Failed DROP TABLE '%s': %v", s.Name, err)
			return fmt.Errorf("failed to drop table: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM _schemas WHERE id = $1`, s.ID)
		if err != nil {
			return fmt.Errorf("database error deleting schema: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed confirming schema deletion: %w", err)
		}
		if affected == 0 {
			return ErrSchemaNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	customLog.Printf("Storage: Deleted schema '%s' (%s)", s.Name, s.ID)
	return nil
}

// CountRows returns the row count of a physical table. Table name comes from
// a validated schema document.
func CountRows(ctx context.Context, db *sql.DB, tableName string) (int64, error) {
	var count int64
	// nolint:gosec // tableName originates from a validated schema document
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("database error counting rows: %w", err)
	}
	return count, nil
}

// GetSyncState reads the last applied permission document hash and timestamp.
func GetSyncState(ctx context.Context, db *sql.DB) (string, sql.NullTime, error) {
	var hash string
	var syncedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT permissions_hash, permissions_synced_at FROM _settings WHERE id = 1`).Scan(&hash, &syncedAt)
	if err != nil {
		return "", sql.NullTime{}, fmt.Errorf("database error loading sync state: %w", err)
	}
	return hash, syncedAt, nil
}

// UpdateSyncState persists the hash and timestamp of an applied permission
// document. The single settings row gives us the database's row lock as the
// serialization point for concurrent sync triggers.
func UpdateSyncState(ctx context.Context, db *sql.DB, hash string, syncedAt sql.NullTime) error {
	_, err := db.ExecContext(ctx,
		`UPDATE _settings SET permissions_hash = $1, permissions_synced_at = $2 WHERE id = 1`, hash, syncedAt)
	if err != nil {
		return fmt.Errorf("database error updating sync state: %w", err)
	}
	return nil
}
