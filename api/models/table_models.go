// api/models/table_models.go
package models

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pulsar-base/pulsar-backend/internal/schema"
)

// --- JWT Claims ---

// CustomClaims includes standard claims plus the userID and role claims the
// identity provider sets on every token.
type CustomClaims struct {
	UserID string `json:"userID"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// --- Table Request/Response Structs ---

// CreateTableRequest defines the structure for the table creation body: a
// name plus the typed field arrays of the schema document.
type CreateTableRequest struct {
	Name           string                 `json:"name" binding:"required"`
	StringFields   []schema.StringField   `json:"stringFields"`
	NumberFields   []schema.NumberField   `json:"numberFields"`
	BooleanFields  []schema.BooleanField  `json:"booleanFields"`
	DateFields     []schema.DateField     `json:"dateFields"`
	EmailFields    []schema.EmailField    `json:"emailFields"`
	UrlFields      []schema.UrlField      `json:"urlFields"`
	SelectFields   []schema.SelectField   `json:"selectFields"`
	RelationFields []schema.RelationField `json:"relationFields"`
	Permissions    *schema.Permissions    `json:"permissions"`
}

// FieldActionRequest is one entry of an update request's field change list.
// Field carries the raw document for create/update actions and is decoded
// against Type.
type FieldActionRequest struct {
	Action    string          `json:"action" binding:"required,oneof=create update delete"`
	FieldName string          `json:"fieldName" binding:"required"`
	Type      string          `json:"type"`
	Field     json.RawMessage `json:"field"`
}

// UpdateTableRequest defines the structure for the table update body. Every
// part is optional; a request may rename, change permissions, and alter
// fields in one call.
type UpdateTableRequest struct {
	Name        *string              `json:"name"`
	Permissions *schema.Permissions  `json:"permissions"`
	Fields      []FieldActionRequest `json:"fields"`
}

// TableSummary is one entry of the table listing response.
type TableSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RowCount  int64  `json:"rowCount"`
	FieldSize int    `json:"fieldSize"`
}
