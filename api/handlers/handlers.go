// api/handlers/handlers.go
package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/pulsar-base/pulsar-backend/internal/auth"
	"github.com/pulsar-base/pulsar-backend/internal/core"
	"github.com/pulsar-base/pulsar-backend/internal/logger"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
)

// AdminRole is the role claim that bypasses table rules and unlocks schema
// management.
const AdminRole = "admin"

var (
	customLog = logger.NewLogger()
)

// caller pulls the authenticated identity set by the auth middleware.
func caller(c *gin.Context) (userID, role string) {
	userID = c.MustGet("userId").(string)
	if r, ok := c.Get("role"); ok {
		role, _ = r.(string)
	}
	return userID, role
}

// requireAdmin rejects callers without the admin role. Schema management is
// admin-only regardless of table rules.
func requireAdmin(c *gin.Context) bool {
	_, role := caller(c)
	if role != AdminRole {
		_ = c.Error(fmt.Errorf("%w: admin role required", auth.ErrForbidden))
		c.Abort()
		return false
	}
	return true
}

// evalRow flattens a decoded document into the snake_case symbol map
// permission expressions resolve against. Embedded single relations collapse
// to the related record's id so rules can compare them to @request.user.
func evalRow(s *schema.TableSchema, doc map[string]any) map[string]any {
	row := map[string]any{"id": doc["id"]}
	for _, f := range s.Fields() {
		name := f.FieldName()
		value := doc[core.ToCamelCase(name)]
		if embedded, ok := value.(map[string]any); ok {
			value = embedded["id"]
		}
		row[name] = value
	}
	return row
}

// evalInput builds the symbol map for a create rule from the incoming wire
// document: same shape as evalRow but keyed off raw request values.
func evalInput(s *schema.TableSchema, input map[string]any) map[string]any {
	row := map[string]any{}
	for _, f := range s.Fields() {
		name := f.FieldName()
		row[name] = input[core.ToCamelCase(name)]
	}
	return row
}
