// api/handlers/table_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pulsar-base/pulsar-backend/api/models"
	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/auth"
	"github.com/pulsar-base/pulsar-backend/internal/core"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
	"github.com/pulsar-base/pulsar-backend/internal/storage"
)

// TableHandler holds dependencies for table management handlers.
type TableHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(db *sql.DB, cfg *config.Config) *TableHandler {
	return &TableHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// ListTables handles GET /tables/list: every table with its row count.
func (h *TableHandler) ListTables(c *gin.Context) {
	schemas, err := storage.ListSchemas(c.Request.Context(), h.DB)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	summaries := make([]models.TableSummary, 0, len(schemas))
	for _, s := range schemas {
		count, err := storage.CountRows(c.Request.Context(), h.DB, s.Name)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		summaries = append(summaries, models.TableSummary{
			ID:        s.ID,
			Name:      s.Name,
			RowCount:  count,
			FieldSize: len(s.Fields()),
		})
	}

	c.JSON(http.StatusOK, gin.H{"tables": summaries})
}

// CreateTable handles POST /tables/create. Admin only.
func (h *TableHandler) CreateTable(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	var req models.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	now := time.Now().UTC()
	s := &schema.TableSchema{
		ID:             uuid.NewString(),
		Name:           core.NormalizeName(req.Name),
		StringFields:   req.StringFields,
		NumberFields:   req.NumberFields,
		BooleanFields:  req.BooleanFields,
		DateFields:     req.DateFields,
		EmailFields:    req.EmailFields,
		UrlFields:      req.UrlFields,
		SelectFields:   req.SelectFields,
		RelationFields: req.RelationFields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Permissions != nil {
		s.Permissions = *req.Permissions
	}

	if err := s.Validate(); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if err := h.checkRelationTargets(c, s); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	if err := storage.CreateSchema(c.Request.Context(), h.DB, s); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	customLog.Printf("Handler: Created table '%s'", s.Name)
	c.JSON(http.StatusCreated, gin.H{"message": "Table created successfully.", "table": s})
}

// UpdateTable handles PATCH /tables/update/:name. Admin only. Compiles the
// requested changes into one transactional migration.
func (h *TableHandler) UpdateTable(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	current, err := storage.GetSchemaByName(c.Request.Context(), h.DB, c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	var req models.UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	// Rules in strict mode belong to the sync worker; direct edits are
	// rejected rather than silently overwritten on the next sync.
	if req.Permissions != nil && current.Permissions.Strict {
		_ = c.Error(fmt.Errorf("%w: permissions for table '%s' are managed externally", auth.ErrBadRequest, current.Name))
		c.Abort()
		return
	}

	change := schema.ChangeSet{Permissions: req.Permissions}
	if req.Name != nil {
		change.Rename = core.NormalizeName(*req.Name)
	}
	for _, fa := range req.Fields {
		action := schema.FieldAction{
			Type:      schema.FieldActionType(fa.Action),
			FieldName: core.NormalizeName(fa.FieldName),
		}
		if fa.Action != string(schema.FieldActionDelete) {
			field, err := schema.UnmarshalField(fa.Type, fa.Field)
			if err != nil {
				_ = c.Error(err)
				c.Abort()
				return
			}
			action.Field = field
		}
		change.Actions = append(change.Actions, action)
	}

	migration, err := schema.Diff(current, change)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if err := h.checkRelationTargets(c, migration.Updated); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	if err := storage.UpdateSchema(c.Request.Context(), h.DB, current, migration); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	customLog.Printf("Handler: Updated table '%s' (%d statements)", current.Name, len(migration.Statements))
	c.JSON(http.StatusOK, gin.H{"message": "Table updated successfully.", "table": migration.Updated})
}

// DeleteTable handles DELETE /tables/delete/:name. Admin only.
func (h *TableHandler) DeleteTable(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	s, err := storage.GetSchemaByName(c.Request.Context(), h.DB, c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	if err := storage.DeleteSchema(c.Request.Context(), h.DB, s); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	customLog.Printf("Handler: Deleted table '%s'", s.Name)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Table '%s' deleted successfully.", s.Name)})
}

// checkRelationTargets verifies every relation field points at an existing
// table. Self-references are allowed.
func (h *TableHandler) checkRelationTargets(c *gin.Context, s *schema.TableSchema) error {
	for _, rf := range s.RelationFields {
		if rf.Table == s.Name {
			continue
		}
		if _, err := storage.GetSchemaByName(c.Request.Context(), h.DB, rf.Table); err != nil {
			if errors.Is(err, storage.ErrSchemaNotFound) {
				return fmt.Errorf("%w: relation field %q targets unknown table %q", schema.ErrInvalidSchema, rf.Name, rf.Table)
			}
			return err
		}
	}
	return nil
}
