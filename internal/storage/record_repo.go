// internal/storage/record_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pulsar-base/pulsar-backend/internal/core"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
)

// mapWriteError translates constraint violations reported by Postgres into
// caller-facing errors. The violated constraint name is taken directly from
// the driver (never parsed out of the error detail text); generated unique
// constraints are named <table>_<column>_key, so the offending column is the
// middle part.
func mapWriteError(err error, s *schema.TableSchema) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		// Generated constraints on the owning table are named
		// <table>_<column>_key. Violations raised elsewhere (join tables,
		// manually created constraints) keep the raw constraint name.
		constraint := pgErr.ConstraintName
		prefix := s.Name + "_"
		if strings.HasPrefix(constraint, prefix) && strings.HasSuffix(constraint, "_key") {
			column := strings.TrimSuffix(strings.TrimPrefix(constraint, prefix), "_key")
			return fmt.Errorf("%w on column '%s'", ErrUniqueViolation, column)
		}
		return fmt.Errorf("%w (constraint %s)", ErrUniqueViolation, constraint)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrRelationNotFound, pgErr.ConstraintName)
	default:
		return err
	}
}

// InsertRecord writes one compiled record and its join rows in a transaction.
func InsertRecord(ctx context.Context, db *sql.DB, s *schema.TableSchema, rec *schema.CompiledRecord) error {
	placeholders := make([]string, len(rec.Columns))
	for i := range rec.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	// nolint:gosec // identifiers come from a validated schema document
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Name, strings.Join(rec.Columns, ", "), strings.Join(placeholders, ", "))

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSQL, rec.Values...); err != nil {
			customLog.Warnf("Storage: Failed INSERT into '%s': %v", s.Name, err)
			return mapWriteError(err, s)
		}
		return insertJoinRows(ctx, tx, s, rec)
	})
	if err != nil {
		return err
	}

	customLog.Printf("Storage: Inserted record %s into '%s'", rec.ID, s.Name)
	return nil
}

// UpdateRecord applies a partial compiled record to one row, rewriting the
// join rows of any Many relation present in the record.
func UpdateRecord(ctx context.Context, db *sql.DB, s *schema.TableSchema, recordID string, rec *schema.CompiledRecord) error {
	setClauses := make([]string, len(rec.Columns))
	for i, col := range rec.Columns {
		setClauses[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args := append(append([]any{}, rec.Values...), recordID)
	// nolint:gosec // identifiers come from a validated schema document
	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		s.Name, strings.Join(setClauses, ", "), len(args))

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, updateSQL, args...)
		if err != nil {
			customLog.Warnf("Storage: Failed UPDATE on '%s': %v", s.Name, err)
			return mapWriteError(err, s)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed confirming update: %w", err)
		}
		if affected == 0 {
			return ErrRecordNotFound
		}

		// Rewrite join rows for every Many relation the update touches.
		for _, rf := range s.ManyRelations() {
			ids, touched := rec.ManyRelations[rf.Name]
			if !touched {
				continue
			}
			if _, err := tx.ExecContext(ctx, schema.JoinDeleteSQL(s.Name, rf), recordID); err != nil {
				return fmt.Errorf("failed clearing relation '%s': %w", rf.Name, err)
			}
			insertSQL := schema.JoinInsertSQL(s.Name, rf)
			for _, targetID := range ids {
				if _, err := tx.ExecContext(ctx, insertSQL, uuid.NewString(), recordID, targetID); err != nil {
					return mapWriteError(err, s)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	customLog.Printf("Storage: Updated record %s in '%s'", recordID, s.Name)
	return nil
}

// DeleteRecord removes one row; join rows follow through ON DELETE CASCADE.
func DeleteRecord(ctx context.Context, db *sql.DB, s *schema.TableSchema, recordID string) error {
	// nolint:gosec // identifier comes from a validated schema document
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.Name)
	result, err := db.ExecContext(ctx, deleteSQL, recordID)
	if err != nil {
		customLog.Warnf("Storage: Failed DELETE on '%s': %v", s.Name, err)
		return fmt.Errorf("database error during delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming delete: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// GetRecord loads one row with relation embeds attached and decodes it into
// its typed document form.
func GetRecord(ctx context.Context, db *sql.DB, s *schema.TableSchema, recordID string) (map[string]any, error) {
	query := fmt.Sprintf("%s WHERE %s.id = $1 LIMIT 1", schema.SelectSQL(s), s.Name)
	rows, err := db.QueryContext(ctx, query, recordID)
	if err != nil {
		customLog.Warnf("Storage: Failed SELECT by id on '%s': %v", s.Name, err)
		return nil, fmt.Errorf("database error getting record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed checking for record: %w", err)
		}
		return nil, ErrRecordNotFound
	}
	raw, err := scanRowMap(rows)
	if err != nil {
		return nil, err
	}
	return schema.DecodeRow(s, raw), nil
}

// ListRecords loads every row matching the given equality filters, decoded
// with relation embeds. Filter keys are wire (camelCase) field names.
func ListRecords(ctx context.Context, db *sql.DB, s *schema.TableSchema, queryParams url.Values) ([]map[string]any, error) {
	whereClauses := []string{}
	args := []any{}

	for key, values := range queryParams {
		if len(values) == 0 {
			continue
		}
		column, value, err := compileFilter(s, key, values[0])
		if err != nil {
			return nil, err
		}
		args = append(args, value)
		whereClauses = append(whereClauses, fmt.Sprintf("%s.%s = $%d", s.Name, column, len(args)))
	}

	query := schema.SelectSQL(s)
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s.created_at DESC, %s.id ASC", s.Name, s.Name)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed filtered SELECT on '%s': %v\nSQL: %s", s.Name, err, query)
		return nil, fmt.Errorf("database error listing records: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]any, 0)
	for rows.Next() {
		raw, err := scanRowMap(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, schema.DecodeRow(s, raw))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed processing all records: %w", err)
	}
	return results, nil
}

// compileFilter resolves one query-param filter to a column and typed value.
func compileFilter(s *schema.TableSchema, key, rawValue string) (string, any, error) {
	if key == "id" {
		return "id", rawValue, nil
	}
	name := core.ToSnakeCase(key)
	if !core.IsValidIdentifier(name) {
		return "", nil, fmt.Errorf("%w: invalid filter key format '%s'", ErrInvalidFilterValue, key)
	}
	f, ok := s.FieldByName(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: filter key '%s' not found in table schema", ErrInvalidFilterValue, key)
	}

	switch fd := f.(type) {
	case schema.NumberField:
		n, err := strconv.ParseInt(rawValue, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: expected an integer for field '%s'", ErrInvalidFilterValue, key)
		}
		return name, n, nil
	case schema.BooleanField:
		b, err := strconv.ParseBool(rawValue)
		if err != nil {
			return "", nil, fmt.Errorf("%w: expected a boolean for field '%s'", ErrInvalidFilterValue, key)
		}
		return name, b, nil
	case schema.SelectField:
		if fd.Multiple() {
			return "", nil, fmt.Errorf("%w: field '%s' does not support equality filters", ErrInvalidFilterValue, key)
		}
		return name, rawValue, nil
	case schema.RelationField:
		if fd.Cardinality == schema.CardinalityMany {
			return "", nil, fmt.Errorf("%w: field '%s' does not support equality filters", ErrInvalidFilterValue, key)
		}
		return name, rawValue, nil
	default:
		return name, rawValue, nil
	}
}

// insertJoinRows writes the join rows for every Many relation of a new record.
func insertJoinRows(ctx context.Context, tx *sql.Tx, s *schema.TableSchema, rec *schema.CompiledRecord) error {
	for _, rf := range s.ManyRelations() {
		ids := rec.ManyRelations[rf.Name]
		if len(ids) == 0 {
			continue
		}
		insertSQL := schema.JoinInsertSQL(s.Name, rf)
		for _, targetID := range ids {
			if _, err := tx.ExecContext(ctx, insertSQL, uuid.NewString(), rec.ID, targetID); err != nil {
				return mapWriteError(err, s)
			}
		}
	}
	return nil
}

// scanRowMap scans the current row into a column-keyed map.
func scanRowMap(rows *sql.Rows) (map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed processing results: %w", err)
	}
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := rows.Scan(scanArgs...); err != nil {
		return nil, fmt.Errorf("failed reading record data: %w", err)
	}
	raw := make(map[string]any, len(columns))
	for i, col := range columns {
		raw[col] = values[i]
	}
	return raw, nil
}
