// internal/schema/diff.go
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/pulsar-base/pulsar-backend/internal/core"
)

type FieldActionType string

const (
	FieldActionCreate FieldActionType = "create"
	FieldActionUpdate FieldActionType = "update"
	FieldActionDelete FieldActionType = "delete"
)

// FieldAction is one requested change to a schema's field list.
type FieldAction struct {
	Type      FieldActionType
	FieldName string // existing field, for update/delete
	Field     Field  // new definition, for create/update
}

// ChangeSet is one schema edit request: an ordered list of field actions,
// an optional table rename, and an optional permissions replacement.
type ChangeSet struct {
	Actions     []FieldAction
	Rename      string
	Permissions *Permissions
}

// Migration is the compiled output of a schema edit: the statement sequence
// to run (in order, inside one transaction) and the resulting schema document.
type Migration struct {
	Statements []string
	Updated    *TableSchema
}

// Diff compiles a change set against the current schema into an ordered
// statement sequence. Statement groups run in this order so every statement
// can reference the original table name:
//
//	(a) column renames, then adds/drops batched into a single ALTER TABLE
//	(b) join-table creation and population for fields becoming Many
//	(c) data migration for fields becoming Single
//	(d) join-table drops for fields leaving Many
//	(e) join-table renames and the table rename, last
func Diff(current *TableSchema, change ChangeSet) (*Migration, error) {
	updated := current.Clone()
	table := current.Name

	var (
		renameOps  []string // standalone RENAME COLUMN statements (group a)
		columnOps  []string // fragments of one ALTER TABLE (group a)
		joinOps    []string // group b
		singleOps  []string // group c
		dropOps    []string // group d
		finalOps   []string // group e
	)

	for _, action := range change.Actions {
		switch action.Type {
		case FieldActionCreate:
			f := action.Field
			if f == nil {
				return nil, fmt.Errorf("%w: create action is missing a field definition", ErrInvalidSchema)
			}
			name := f.FieldName()
			if _, exists := updated.FieldByName(name); exists {
				return nil, fmt.Errorf("%w: field %q already exists", ErrInvalidSchema, name)
			}
			if rf, ok := f.(RelationField); ok && rf.Cardinality == CardinalityMany {
				joinOps = append(joinOps, JoinTableSQL(table, rf))
			} else if col := columnDDL(f); col != "" {
				columnOps = append(columnOps, "ADD COLUMN "+col)
			}
			updated.AddField(f)

		case FieldActionDelete:
			old, ok := updated.FieldByName(action.FieldName)
			if !ok {
				return nil, fmt.Errorf("%w: field %q not found", ErrInvalidSchema, action.FieldName)
			}
			if rf, ok := old.(RelationField); ok && rf.Cardinality == CardinalityMany {
				dropOps = append(dropOps, DropTableSQL(JoinTableName(table, rf.Name, rf.Table)))
			} else {
				columnOps = append(columnOps, "DROP COLUMN "+old.FieldName())
			}
			updated.RemoveField(action.FieldName)

		case FieldActionUpdate:
			old, ok := updated.FieldByName(action.FieldName)
			if !ok {
				return nil, fmt.Errorf("%w: field %q not found", ErrInvalidSchema, action.FieldName)
			}
			newField := action.Field
			if newField == nil {
				return nil, fmt.Errorf("%w: update action for %q is missing a field definition", ErrInvalidSchema, action.FieldName)
			}
			oldRel, oldIsRel := old.(RelationField)
			newRel, newIsRel := newField.(RelationField)

			switch {
			case oldIsRel && newIsRel && oldRel.Cardinality != newRel.Cardinality:
				if newRel.Cardinality == CardinalityMany {
					// Single -> Many: create and backfill the join table from
					// the FK column, then drop the column.
					join := JoinTableName(table, newRel.Name, newRel.Table)
					ownerCol, targetCol := joinColumnNames(table, newRel.Table)
					joinOps = append(joinOps,
						JoinTableSQL(table, newRel),
						fmt.Sprintf(
							"INSERT INTO %s (id, %s, %s) SELECT gen_random_uuid()::text, id, %s FROM %s WHERE %s IS NOT NULL;",
							join, ownerCol, targetCol, oldRel.Name, table, oldRel.Name),
						fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", table, oldRel.Name),
					)
				} else {
					// Many -> Single: add the FK column nullable, copy the
					// most recently created related row per owner, then
					// tighten to NOT NULL once backfilled. Adding the column
					// NOT NULL up front would fail on any non-empty table.
					join := JoinTableName(table, oldRel.Name, oldRel.Table)
					ownerCol, targetCol := joinColumnNames(table, oldRel.Table)
					nullable := newRel
					nullable.Required = false
					singleOps = append(singleOps,
						fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, columnDDL(nullable)),
						fmt.Sprintf(
							"UPDATE %s SET %s = (SELECT rel.id FROM %s rel JOIN %s jt ON jt.%s = rel.id WHERE jt.%s = %s.id ORDER BY rel.created_at DESC, jt.id ASC LIMIT 1);",
							table, newRel.Name, oldRel.Table, join, targetCol, ownerCol, table),
					)
					if newRel.Required {
						singleOps = append(singleOps,
							fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, newRel.Name))
					}
					dropOps = append(dropOps, DropTableSQL(join))
				}

			case sameFieldKind(old, newField) && old.FieldName() == newField.FieldName():
				if !columnShapeEqual(old, newField) {
					// Same name, incompatible column shape: drop and re-add,
					// data is not transformed.
					if oldIsRel && oldRel.Cardinality == CardinalityMany {
						dropOps = append(dropOps, DropTableSQL(JoinTableName(table, oldRel.Name, oldRel.Table)))
						joinOps = append(joinOps, JoinTableSQL(table, newRel))
					} else {
						columnOps = append(columnOps,
							"DROP COLUMN "+old.FieldName(),
							"ADD COLUMN "+columnDDL(newField),
						)
					}
				} else if old.ColumnType() != "" {
					columnOps = append(columnOps, constraintOps(table, old, newField)...)
				}

			case sameFieldKind(old, newField) && constraintsEqualIgnoringName(old, newField):
				// Plain rename.
				if oldIsRel && oldRel.Cardinality == CardinalityMany {
					finalOps = append(finalOps, fmt.Sprintf("ALTER TABLE %s RENAME TO %s;",
						JoinTableName(table, oldRel.Name, oldRel.Table),
						JoinTableName(table, newRel.Name, newRel.Table)))
				} else {
					renameOps = append(renameOps, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;",
						table, old.FieldName(), newField.FieldName()))
				}

			default:
				// Rename combined with a type or constraint change: add the
				// new column and drop the old one, data is not transformed.
				if oldIsRel && oldRel.Cardinality == CardinalityMany {
					dropOps = append(dropOps, DropTableSQL(JoinTableName(table, oldRel.Name, oldRel.Table)))
				} else {
					columnOps = append(columnOps, "DROP COLUMN "+old.FieldName())
				}
				if newIsRel && newRel.Cardinality == CardinalityMany {
					joinOps = append(joinOps, JoinTableSQL(table, newRel))
				} else if col := columnDDL(newField); col != "" {
					columnOps = append(columnOps, "ADD COLUMN "+col)
				}
			}

			updated.RemoveField(action.FieldName)
			updated.AddField(newField)

		default:
			return nil, fmt.Errorf("%w: unknown field action %q", ErrInvalidSchema, action.Type)
		}
	}

	if change.Rename != "" && change.Rename != table {
		if !core.IsValidIdentifier(change.Rename) {
			return nil, fmt.Errorf("%w: invalid table name %q", ErrInvalidSchema, change.Rename)
		}
		// Join-table names embed the owner name, so they move with it.
		for _, rf := range updated.ManyRelations() {
			finalOps = append(finalOps, fmt.Sprintf("ALTER TABLE %s RENAME TO %s;",
				JoinTableName(table, rf.Name, rf.Table),
				JoinTableName(change.Rename, rf.Name, rf.Table)))
		}
		finalOps = append(finalOps, fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", table, change.Rename))
		updated.Name = change.Rename
	}

	if change.Permissions != nil {
		updated.Permissions = *change.Permissions
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	var stmts []string
	stmts = append(stmts, renameOps...)
	if len(columnOps) > 0 {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s %s;", table, joinFragments(columnOps)))
	}
	stmts = append(stmts, joinOps...)
	stmts = append(stmts, singleOps...)
	stmts = append(stmts, dropOps...)
	stmts = append(stmts, finalOps...)

	return &Migration{Statements: stmts, Updated: updated}, nil
}

func joinFragments(ops []string) string {
	out := ops[0]
	for _, op := range ops[1:] {
		out += ", " + op
	}
	return out
}

// constraintOps reconciles NOT NULL and UNIQUE between two same-shape
// definitions of the same column. The UNIQUE constraint name matches the one
// Postgres generates for an inline UNIQUE at create time.
func constraintOps(table string, old, updated Field) []string {
	var ops []string
	col := old.FieldName()
	if old.IsRequired() != updated.IsRequired() {
		if updated.IsRequired() {
			ops = append(ops, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col))
		} else {
			ops = append(ops, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col))
		}
	}
	if old.IsUnique() != updated.IsUnique() {
		if updated.IsUnique() {
			ops = append(ops, fmt.Sprintf("ADD CONSTRAINT %s_%s_key UNIQUE (%s)", table, col, col))
		} else {
			ops = append(ops, fmt.Sprintf("DROP CONSTRAINT IF EXISTS %s_%s_key", table, col))
		}
	}
	return ops
}

func sameFieldKind(a, b Field) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// columnShapeEqual reports whether two definitions map to the same physical
// column shape (type and foreign key), ignoring NOT NULL/UNIQUE which are
// reconciled in place.
func columnShapeEqual(a, b Field) bool {
	if a.ColumnType() != b.ColumnType() {
		return false
	}
	ra, aok := a.(RelationField)
	rb, bok := b.(RelationField)
	if aok != bok {
		return false
	}
	if aok && (ra.Table != rb.Table || ra.CascadeDelete != rb.CascadeDelete) {
		return false
	}
	return true
}

// constraintsEqualIgnoringName compares two definitions of the same kind with
// the name masked out, via their document form.
func constraintsEqualIgnoringName(a, b Field) bool {
	am := fieldDoc(a)
	bm := fieldDoc(b)
	delete(am, "name")
	delete(bm, "name")
	return reflect.DeepEqual(am, bm)
}

func fieldDoc(f Field) map[string]any {
	data, _ := json.Marshal(f)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}
