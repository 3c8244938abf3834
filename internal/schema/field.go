// internal/schema/field.go
package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulsar-base/pulsar-backend/internal/core"
)

// Cardinality says whether a relation field points at one or many rows.
type Cardinality string

const (
	CardinalitySingle Cardinality = "single"
	CardinalityMany   Cardinality = "many"
)

// Permissions holds the optional access rule expressions for a table.
// A nil rule denies the operation. Strict marks the rules as externally
// managed: they may only be rewritten by the permission sync worker.
type Permissions struct {
	View   *string `json:"view"`
	Create *string `json:"create"`
	Update *string `json:"update"`
	Delete *string `json:"delete"`
	Strict bool    `json:"strict"`
}

// TableSchema is the persisted definition of one user-created table.
// Name doubles as the physical table name.
type TableSchema struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StringFields   []StringField   `json:"stringFields"`
	NumberFields   []NumberField   `json:"numberFields"`
	BooleanFields  []BooleanField  `json:"booleanFields"`
	DateFields     []DateField     `json:"dateFields"`
	EmailFields    []EmailField    `json:"emailFields"`
	UrlFields      []UrlField      `json:"urlFields"`
	SelectFields   []SelectField   `json:"selectFields"`
	RelationFields []RelationField `json:"relationFields"`
	Permissions    Permissions     `json:"permissions"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Field is the closed set of typed field definitions. Every component that
// consumes a schema (validation, DDL, decode, diff) switches exhaustively
// over the concrete types.
type Field interface {
	FieldName() string
	IsRequired() bool
	IsUnique() bool
	// ColumnType returns the Postgres column type for the field, or "" when
	// the field has no column on the owning table (Many relations).
	ColumnType() string
	// Validate compiles an input value into its SQL form, or reports why the
	// value violates the field's constraints.
	Validate(value any) (any, error)
}

type StringField struct {
	Name      string `json:"name"`
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Required  bool   `json:"isRequired"`
	Unique    bool   `json:"isUnique"`
}

type NumberField struct {
	Name     string `json:"name"`
	Min      *int64 `json:"min,omitempty"`
	Max      *int64 `json:"max,omitempty"`
	Required bool   `json:"isRequired"`
	Unique   bool   `json:"isUnique"`
}

type BooleanField struct {
	Name string `json:"name"`
}

type DateField struct {
	Name     string `json:"name"`
	Required bool   `json:"isRequired"`
	Unique   bool   `json:"isUnique"`
}

type EmailField struct {
	Name     string   `json:"name"`
	Only     []string `json:"only,omitempty"`
	Except   []string `json:"except,omitempty"`
	Required bool     `json:"isRequired"`
	Unique   bool     `json:"isUnique"`
}

type UrlField struct {
	Name     string   `json:"name"`
	Only     []string `json:"only,omitempty"`
	Except   []string `json:"except,omitempty"`
	Required bool     `json:"isRequired"`
	Unique   bool     `json:"isUnique"`
}

type SelectField struct {
	Name        string   `json:"name"`
	Options     []string `json:"options"`
	MinSelected *int     `json:"minSelected,omitempty"`
	MaxSelected *int     `json:"maxSelected,omitempty"`
	Required    bool     `json:"isRequired"`
	Unique      bool     `json:"isUnique"`
}

type RelationField struct {
	Name          string      `json:"name"`
	Table         string      `json:"targetTable"`
	Cardinality   Cardinality `json:"cardinality"`
	MinSelected   *int        `json:"minSelected,omitempty"`
	MaxSelected   *int        `json:"maxSelected,omitempty"`
	CascadeDelete bool        `json:"cascadeDelete"`
	Required      bool        `json:"isRequired"`
	Unique        bool        `json:"isUnique"`
}

func (f StringField) FieldName() string  { return f.Name }
func (f StringField) IsRequired() bool   { return f.Required }
func (f StringField) IsUnique() bool     { return f.Unique }
func (f StringField) ColumnType() string { return "TEXT" }

func (f NumberField) FieldName() string  { return f.Name }
func (f NumberField) IsRequired() bool   { return f.Required }
func (f NumberField) IsUnique() bool     { return f.Unique }
func (f NumberField) ColumnType() string { return "BIGINT" }

func (f BooleanField) FieldName() string  { return f.Name }
func (f BooleanField) IsRequired() bool   { return false }
func (f BooleanField) IsUnique() bool     { return false }
func (f BooleanField) ColumnType() string { return "BOOLEAN" }

func (f DateField) FieldName() string  { return f.Name }
func (f DateField) IsRequired() bool   { return f.Required }
func (f DateField) IsUnique() bool     { return f.Unique }
func (f DateField) ColumnType() string { return "TIMESTAMPTZ" }

func (f EmailField) FieldName() string  { return f.Name }
func (f EmailField) IsRequired() bool   { return f.Required }
func (f EmailField) IsUnique() bool     { return f.Unique }
func (f EmailField) ColumnType() string { return "TEXT" }

func (f UrlField) FieldName() string  { return f.Name }
func (f UrlField) IsRequired() bool   { return f.Required }
func (f UrlField) IsUnique() bool     { return f.Unique }
func (f UrlField) ColumnType() string { return "TEXT" }

func (f SelectField) FieldName() string { return f.Name }
func (f SelectField) IsRequired() bool  { return f.Required }
func (f SelectField) IsUnique() bool    { return f.Unique }

// Multiple reports whether the field stores more than one selected option.
// A maxSelected of exactly 1 stores a plain TEXT column.
func (f SelectField) Multiple() bool {
	return f.MaxSelected == nil || *f.MaxSelected != 1
}

func (f SelectField) ColumnType() string {
	if f.Multiple() {
		return "TEXT[]"
	}
	return "TEXT"
}

func (f RelationField) FieldName() string { return f.Name }
func (f RelationField) IsRequired() bool  { return f.Required }
func (f RelationField) IsUnique() bool    { return f.Unique }

func (f RelationField) ColumnType() string {
	if f.Cardinality == CardinalityMany {
		return "" // lives in the join table, not on the owning table
	}
	return "TEXT"
}

// Fields returns every field definition in category order: strings, numbers,
// booleans, dates, emails, urls, selects, relations.
func (s *TableSchema) Fields() []Field {
	fields := make([]Field, 0,
		len(s.StringFields)+len(s.NumberFields)+len(s.BooleanFields)+len(s.DateFields)+
			len(s.EmailFields)+len(s.UrlFields)+len(s.SelectFields)+len(s.RelationFields))
	for _, f := range s.StringFields {
		fields = append(fields, f)
	}
	for _, f := range s.NumberFields {
		fields = append(fields, f)
	}
	for _, f := range s.BooleanFields {
		fields = append(fields, f)
	}
	for _, f := range s.DateFields {
		fields = append(fields, f)
	}
	for _, f := range s.EmailFields {
		fields = append(fields, f)
	}
	for _, f := range s.UrlFields {
		fields = append(fields, f)
	}
	for _, f := range s.SelectFields {
		fields = append(fields, f)
	}
	for _, f := range s.RelationFields {
		fields = append(fields, f)
	}
	return fields
}

// FieldByName looks up a field definition by its snake_case name.
func (s *TableSchema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.FieldName() == name {
			return f, true
		}
	}
	return nil, false
}

// ManyRelations returns the relation fields backed by join tables.
func (s *TableSchema) ManyRelations() []RelationField {
	var many []RelationField
	for _, f := range s.RelationFields {
		if f.Cardinality == CardinalityMany {
			many = append(many, f)
		}
	}
	return many
}

// Validate checks the structural invariants of a schema definition: valid
// lower_snake_case names, no reserved or duplicate field names, and relation
// fields carrying a target table and cardinality.
func (s *TableSchema) Validate() error {
	if !core.IsValidIdentifier(s.Name) {
		return fmt.Errorf("%w: invalid table name %q: must be lower_snake_case, max 64 chars", ErrInvalidSchema, s.Name)
	}
	seen := map[string]struct{}{}
	for _, f := range s.Fields() {
		name := f.FieldName()
		if !core.IsValidIdentifier(name) {
			return fmt.Errorf("%w: invalid field name %q: must be lower_snake_case, max 64 chars", ErrInvalidSchema, name)
		}
		if core.IsReservedFieldName(name) {
			return fmt.Errorf("%w: field name %q is reserved", ErrInvalidSchema, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", ErrInvalidSchema, name)
		}
		seen[name] = struct{}{}
	}
	for _, f := range s.RelationFields {
		if !core.IsValidIdentifier(f.Table) {
			return fmt.Errorf("%w: relation field %q has invalid target table %q", ErrInvalidSchema, f.Name, f.Table)
		}
		if f.Cardinality != CardinalitySingle && f.Cardinality != CardinalityMany {
			return fmt.Errorf("%w: relation field %q has invalid cardinality %q", ErrInvalidSchema, f.Name, f.Cardinality)
		}
	}
	return nil
}

// AddField appends a field definition to its category list.
func (s *TableSchema) AddField(f Field) {
	switch fd := f.(type) {
	case StringField:
		s.StringFields = append(s.StringFields, fd)
	case NumberField:
		s.NumberFields = append(s.NumberFields, fd)
	case BooleanField:
		s.BooleanFields = append(s.BooleanFields, fd)
	case DateField:
		s.DateFields = append(s.DateFields, fd)
	case EmailField:
		s.EmailFields = append(s.EmailFields, fd)
	case UrlField:
		s.UrlFields = append(s.UrlFields, fd)
	case SelectField:
		s.SelectFields = append(s.SelectFields, fd)
	case RelationField:
		s.RelationFields = append(s.RelationFields, fd)
	}
}

// RemoveField deletes a field definition by name. Returns false if absent.
func (s *TableSchema) RemoveField(name string) bool {
	for i, f := range s.StringFields {
		if f.Name == name {
			s.StringFields = append(s.StringFields[:i], s.StringFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.NumberFields {
		if f.Name == name {
			s.NumberFields = append(s.NumberFields[:i], s.NumberFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.BooleanFields {
		if f.Name == name {
			s.BooleanFields = append(s.BooleanFields[:i], s.BooleanFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.DateFields {
		if f.Name == name {
			s.DateFields = append(s.DateFields[:i], s.DateFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.EmailFields {
		if f.Name == name {
			s.EmailFields = append(s.EmailFields[:i], s.EmailFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.UrlFields {
		if f.Name == name {
			s.UrlFields = append(s.UrlFields[:i], s.UrlFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.SelectFields {
		if f.Name == name {
			s.SelectFields = append(s.SelectFields[:i], s.SelectFields[i+1:]...)
			return true
		}
	}
	for i, f := range s.RelationFields {
		if f.Name == name {
			s.RelationFields = append(s.RelationFields[:i], s.RelationFields[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the schema via its JSON document form.
func (s *TableSchema) Clone() *TableSchema {
	data, _ := json.Marshal(s)
	var out TableSchema
	_ = json.Unmarshal(data, &out)
	return &out
}

// UnmarshalField decodes a raw field definition of the given kind into its
// concrete type. Kind matches the category key without the "Fields" suffix
// (string, number, boolean, date, email, url, select, relation).
func UnmarshalField(kind string, raw json.RawMessage) (Field, error) {
	var f Field
	var err error
	switch kind {
	case "string":
		var fd StringField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "number":
		var fd NumberField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "boolean":
		var fd BooleanField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "date":
		var fd DateField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "email":
		var fd EmailField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "url":
		var fd UrlField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "select":
		var fd SelectField
		err = json.Unmarshal(raw, &fd)
		f = fd
	case "relation":
		var fd RelationField
		err = json.Unmarshal(raw, &fd)
		f = fd
	default:
		return nil, fmt.Errorf("%w: unknown field kind %q", ErrInvalidSchema, kind)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
