// internal/schema/relation.go
package schema

import (
	"fmt"
	"strings"
)

// JoinTableName builds the deterministic name of the auxiliary table backing
// a many-to-many relation: {owner}_{field}_to_{target}.
func JoinTableName(owner, field, target string) string {
	return fmt.Sprintf("%s_%s_to_%s", owner, field, target)
}

// joinColumnNames returns the owner-side and target-side column names of a
// join table. Self-referencing relations fall back to source_id/target_id,
// since {owner}_id on both sides would collide.
func joinColumnNames(owner, target string) (string, string) {
	if owner == target {
		return "source_id", "target_id"
	}
	return owner + "_id", target + "_id"
}

// JoinTableSQL emits the join table for one Many relation field. Both sides
// cascade on update and delete so join rows never outlive either endpoint.
func JoinTableSQL(owner string, f RelationField) string {
	name := JoinTableName(owner, f.Name, f.Table)
	ownerCol, targetCol := joinColumnNames(owner, f.Table)
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    %s TEXT NOT NULL REFERENCES %s (id) ON UPDATE CASCADE ON DELETE CASCADE,
    %s TEXT NOT NULL REFERENCES %s (id) ON UPDATE CASCADE ON DELETE CASCADE
);`, name, ownerCol, owner, targetCol, f.Table)
}

// JoinInsertSQL builds the parameterized insert for one join row:
// (id, owner id, target id).
func JoinInsertSQL(owner string, f RelationField) string {
	name := JoinTableName(owner, f.Name, f.Table)
	ownerCol, targetCol := joinColumnNames(owner, f.Table)
	return fmt.Sprintf("INSERT INTO %s (id, %s, %s) VALUES ($1, $2, $3)", name, ownerCol, targetCol)
}

// JoinDeleteSQL builds the parameterized delete of every join row for one
// owner row, used when a Many relation value is rewritten on update.
func JoinDeleteSQL(owner string, f RelationField) string {
	name := JoinTableName(owner, f.Name, f.Table)
	ownerCol, _ := joinColumnNames(owner, f.Table)
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", name, ownerCol)
}

// singleEmbedSQL wraps the related row in row_to_json through a correlated
// subquery on the foreign-key column. The inner table is aliased so the
// correlation survives self-referencing relations.
func singleEmbedSQL(owner string, f RelationField) string {
	return fmt.Sprintf(
		"(SELECT row_to_json(rel) FROM (SELECT tgt.* FROM %s tgt WHERE tgt.id = %s.%s) rel) AS %s",
		f.Table, owner, f.Name, f.Name)
}

// manyEmbedSQL aggregates the related rows with json_agg through the join
// table, with the same self-reference-safe aliasing.
func manyEmbedSQL(owner string, f RelationField) string {
	join := JoinTableName(owner, f.Name, f.Table)
	ownerCol, targetCol := joinColumnNames(owner, f.Table)
	return fmt.Sprintf(
		"(SELECT json_agg(rel) FROM (SELECT tgt.* FROM %s tgt WHERE tgt.id IN (SELECT %s FROM %s WHERE %s = %s.id)) rel) AS %s",
		f.Table, targetCol, join, ownerCol, owner, f.Name)
}

// SelectColumns returns the projection used by every read: system columns,
// plain columns for scalar fields (multi-selects cast to json so array values
// decode uniformly), and embed subqueries for relation fields.
func SelectColumns(s *TableSchema) []string {
	cols := []string{
		s.Name + ".id",
		s.Name + ".created_at",
		s.Name + ".updated_at",
	}
	for _, f := range s.Fields() {
		switch fd := f.(type) {
		case RelationField:
			if fd.Cardinality == CardinalityMany {
				cols = append(cols, manyEmbedSQL(s.Name, fd))
			} else {
				cols = append(cols, singleEmbedSQL(s.Name, fd))
			}
		case SelectField:
			if fd.Multiple() {
				cols = append(cols, fmt.Sprintf("to_json(%s.%s) AS %s", s.Name, fd.Name, fd.Name))
			} else {
				cols = append(cols, fmt.Sprintf("%s.%s", s.Name, fd.Name))
			}
		default:
			cols = append(cols, fmt.Sprintf("%s.%s", s.Name, f.FieldName()))
		}
	}
	return cols
}

// SelectSQL builds the base read statement with relation embeds attached.
func SelectSQL(s *TableSchema) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(SelectColumns(s), ", "), s.Name)
}
