// internal/schema/errors.go
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSchema wraps every structural schema definition failure.
var ErrInvalidSchema = errors.New("invalid table schema")

// ValidationErrors maps the wire (camelCase) field name to the reason its
// value was rejected. Every field is validated before the compile fails, so
// one request surfaces every invalid field at once.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
