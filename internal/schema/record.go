// internal/schema/record.go
package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pulsar-base/pulsar-backend/internal/core"
)

// CompiledRecord is the validated, typed SQL form of an input document.
// Columns/Values feed the INSERT or UPDATE on the owning table; ManyRelations
// routes join-table rows keyed by field name.
type CompiledRecord struct {
	ID            string
	Columns       []string
	Values        []any
	ManyRelations map[string][]string
}

// CompileCreate validates an input document against every field of the schema
// and produces the full SQL value set for an insert. System columns are always
// injected here and never trusted from input. All fields are validated before
// failure so the caller sees every invalid field at once.
func CompileCreate(s *TableSchema, input map[string]any) (*CompiledRecord, ValidationErrors) {
	now := time.Now().UTC()
	rec := &CompiledRecord{
		ID:            uuid.NewString(),
		Columns:       []string{"id", "created_at", "updated_at"},
		Values:        []any{},
		ManyRelations: map[string][]string{},
	}
	rec.Values = append(rec.Values, rec.ID, now, now)

	errs := ValidationErrors{}
	for _, f := range s.Fields() {
		wireKey := core.ToCamelCase(f.FieldName())
		value := input[wireKey]

		compiled, err := f.Validate(value)
		if err != nil {
			errs[wireKey] = err.Error()
			continue
		}
		if rf, ok := f.(RelationField); ok && rf.Cardinality == CardinalityMany {
			if ids, ok := compiled.([]string); ok && len(ids) > 0 {
				rec.ManyRelations[rf.Name] = ids
			}
			continue
		}
		if compiled == nil {
			continue // absent optional field, column stays NULL
		}
		rec.Columns = append(rec.Columns, f.FieldName())
		rec.Values = append(rec.Values, compiled)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

// CompileUpdate validates only the fields present in the input document and
// produces a partial value set. Absent fields are left untouched; updated_at
// is always refreshed.
func CompileUpdate(s *TableSchema, input map[string]any) (*CompiledRecord, ValidationErrors) {
	rec := &CompiledRecord{
		Columns:       []string{"updated_at"},
		Values:        []any{time.Now().UTC()},
		ManyRelations: map[string][]string{},
	}

	errs := ValidationErrors{}
	for _, f := range s.Fields() {
		wireKey := core.ToCamelCase(f.FieldName())
		value, present := input[wireKey]
		if !present {
			continue
		}
		compiled, err := f.Validate(value)
		if err != nil {
			errs[wireKey] = err.Error()
			continue
		}
		if rf, ok := f.(RelationField); ok && rf.Cardinality == CardinalityMany {
			ids, _ := compiled.([]string)
			rec.ManyRelations[rf.Name] = ids // nil clears the relation
			continue
		}
		rec.Columns = append(rec.Columns, f.FieldName())
		rec.Values = append(rec.Values, compiled)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

// DecodeRow reconstructs the typed, camelCase JSON document from a raw
// relational row. Relation fields arrive as pre-attached embed subquery
// results (json), multi-selects as json arrays.
func DecodeRow(s *TableSchema, raw map[string]any) map[string]any {
	doc := map[string]any{
		"id":        decodeScalar(raw["id"]),
		"createdAt": decodeTimestamp(raw["created_at"]),
		"updatedAt": decodeTimestamp(raw["updated_at"]),
	}
	for _, f := range s.Fields() {
		wireKey := core.ToCamelCase(f.FieldName())
		value := raw[f.FieldName()]

		switch fd := f.(type) {
		case DateField:
			doc[wireKey] = decodeTimestamp(value)
		case BooleanField:
			if value == nil {
				doc[wireKey] = false
			} else {
				doc[wireKey] = value
			}
		case SelectField:
			if fd.Multiple() {
				doc[wireKey] = decodeJSONValue(value, []any{})
			} else {
				doc[wireKey] = decodeScalar(value)
			}
		case RelationField:
			if fd.Cardinality == CardinalityMany {
				doc[wireKey] = decodeJSONValue(value, []any{})
			} else {
				doc[wireKey] = decodeJSONValue(value, nil)
			}
		default:
			doc[wireKey] = decodeScalar(value)
		}
	}
	return doc
}

// decodeScalar normalizes driver values: byte slices become strings.
func decodeScalar(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

func decodeTimestamp(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case []byte:
		return string(v)
	default:
		return v
	}
}

// decodeJSONValue unmarshals a json-typed column (embed subqueries, array
// casts). fallback is returned for NULL values.
func decodeJSONValue(value any, fallback any) any {
	var data []byte
	switch v := value.(type) {
	case nil:
		return fallback
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fallback
	}
	if out == nil {
		return fallback
	}
	return out
}
