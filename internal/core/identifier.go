// internal/core/identifier.go
package core

import (
	"regexp"
	"strings"
)

// Regular expression for valid table/field names: lower_snake_case, starting
// with a letter. Table and column identifiers are interpolated into DDL, so
// the grammar is deliberately strict.
var nameValidationRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// System columns present on every physical table. User fields may not shadow them.
var reservedFieldNames = map[string]struct{}{
	"id":         {},
	"created_at": {},
	"updated_at": {},
}

// IsValidIdentifier checks if a string is a valid table or field identifier.
func IsValidIdentifier(name string) bool {
	return len(name) > 0 && len(name) <= 64 && nameValidationRegex.MatchString(name)
}

// IsReservedFieldName reports whether name collides with a system column.
func IsReservedFieldName(name string) bool {
	_, ok := reservedFieldNames[strings.ToLower(name)]
	return ok
}

// NormalizeName lowercases and trims a table name before uniqueness checks.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ToCamelCase converts a snake_case field name to its camelCase wire form.
func ToCamelCase(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 1 {
		return name
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// ToSnakeCase converts a camelCase wire key to its snake_case storage form.
func ToSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
