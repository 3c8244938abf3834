// internal/schema/ddl.go
package schema

import (
	"fmt"
	"strings"
)

// columnDDL renders one column definition for a field, or "" for fields
// without a column on the owning table. Identifiers are validated by
// TableSchema.Validate before any DDL is emitted.
func columnDDL(f Field) string {
	colType := f.ColumnType()
	if colType == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(f.FieldName())
	b.WriteByte(' ')
	b.WriteString(colType)
	if _, ok := f.(BooleanField); ok {
		b.WriteString(" NOT NULL DEFAULT false")
		return b.String()
	}
	if f.IsRequired() {
		b.WriteString(" NOT NULL")
	}
	if f.IsUnique() {
		b.WriteString(" UNIQUE")
	}
	if rf, ok := f.(RelationField); ok {
		b.WriteString(foreignKeyDDL(rf))
	}
	return b.String()
}

// foreignKeyDDL renders the inline REFERENCES clause for a Single relation.
func foreignKeyDDL(f RelationField) string {
	clause := fmt.Sprintf(" REFERENCES %s (id) ON UPDATE CASCADE", f.Table)
	if f.CascadeDelete {
		clause += " ON DELETE CASCADE"
	}
	return clause
}

// CreateTableSQL emits the physical table for a schema: implicit system
// columns plus one column per non-many-relation field.
func CreateTableSQL(s *TableSchema) string {
	columns := []string{
		"id TEXT PRIMARY KEY",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
		"updated_at TIMESTAMPTZ",
	}
	for _, f := range s.Fields() {
		if col := columnDDL(f); col != "" {
			columns = append(columns, col)
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n);", s.Name, strings.Join(columns, ",\n    "))
}

// JoinTableSQLs emits the join-table DDL for every Many relation field.
func JoinTableSQLs(s *TableSchema) []string {
	var stmts []string
	for _, f := range s.ManyRelations() {
		stmts = append(stmts, JoinTableSQL(s.Name, f))
	}
	return stmts
}

// DropTableSQL drops a physical table. IF EXISTS keeps teardown idempotent.
func DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", name)
}
