// internal/storage/errors.go
package storage

import "errors"

// Specific errors for catalog and record operations
var (
	ErrSchemaNotFound     = errors.New("table not found")
	ErrSchemaExists       = errors.New("a table with this name already exists")
	ErrRecordNotFound     = errors.New("record not found")
	ErrUniqueViolation    = errors.New("unique constraint violation")
	ErrRelationNotFound   = errors.New("related record not found")
	ErrInvalidFilterValue = errors.New("invalid value provided for filter")
)
