// api/handlers/record_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/auth"
	"github.com/pulsar-base/pulsar-backend/internal/permission"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
	"github.com/pulsar-base/pulsar-backend/internal/storage"
)

// RecordHandler holds dependencies for row CRUD handlers.
type RecordHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(db *sql.DB, cfg *config.Config) *RecordHandler {
	return &RecordHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// loadSchema resolves the :name path parameter to its schema document.
func (h *RecordHandler) loadSchema(c *gin.Context) (*schema.TableSchema, error) {
	return storage.GetSchemaByName(c.Request.Context(), h.DB, c.Param("name"))
}

// authorize evaluates one table rule for the caller. Admins bypass rules.
func authorize(c *gin.Context, rule *string, row map[string]any) (bool, error) {
	userID, role := caller(c)
	if role == AdminRole {
		return true, nil
	}
	return permission.Authorize(rule, userID, row)
}

// ListRows handles GET /tables/:name/row. Query parameters are equality
// filters on the table's fields; rows the caller's view rule rejects are
// dropped from the result rather than failing the request.
func (h *RecordHandler) ListRows(c *gin.Context) {
	s, err := h.loadSchema(c)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	records, err := storage.ListRecords(c.Request.Context(), h.DB, s, c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	visible := make([]map[string]any, 0, len(records))
	for _, doc := range records {
		allowed, err := authorize(c, s.Permissions.View, evalRow(s, doc))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if allowed {
			visible = append(visible, doc)
		}
	}

	c.JSON(http.StatusOK, gin.H{"records": visible, "count": len(visible)})
}

// CreateRow handles POST /tables/:name/create. The create rule evaluates
// against the incoming document, since no stored row exists yet.
func (h *RecordHandler) CreateRow(c *gin.Context) {
	s, err := h.loadSchema(c)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	var input map[string]any
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(fmt.Errorf("binding error: %w", err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request body: " + err.Error()})
		return
	}

	allowed, err := authorize(c, s.Permissions.Create, evalInput(s, input))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if !allowed {
		_ = c.Error(fmt.Errorf("%w: create denied on table '%s'", auth.ErrForbidden, s.Name))
		c.Abort()
		return
	}

	rec, valErrs := schema.CompileCreate(s, input)
	if valErrs != nil {
		_ = c.Error(valErrs)
		c.Abort()
		return
	}

	if err := storage.InsertRecord(c.Request.Context(), h.DB, s, rec); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	doc, err := storage.GetRecord(c.Request.Context(), h.DB, s, rec.ID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Record created successfully.", "record": doc})
}

// UpdateRow handles PATCH /tables/:name/update?id=. The update rule evaluates
// against the stored row before the change applies.
func (h *RecordHandler) UpdateRow(c *gin.Context) {
	s, err := h.loadSchema(c)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	recordID := c.Query("id")
	if recordID == "" {
		_ = c.Error(fmt.Errorf("%w: query parameter 'id' is required", auth.ErrBadRequest))
		c.Abort()
		return
	}

	existing, err := storage.GetRecord(c.Request.Context(), h.DB, s, recordID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	allowed, err := authorize(c, s.Permissions.Update, evalRow(s, existing))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if !allowed {
		_ = c.Error(fmt.Errorf("%w: update denied on table '%s'", auth.ErrForbidden, s.Name))
		c.Abort()
		return
	}

	var input map[string]any
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(fmt.Errorf("binding error: %w", err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON request body: " + err.Error()})
		return
	}
	if len(input) == 0 {
		_ = c.Error(fmt.Errorf("%w: request body cannot be empty", auth.ErrBadRequest))
		c.Abort()
		return
	}

	rec, valErrs := schema.CompileUpdate(s, input)
	if valErrs != nil {
		_ = c.Error(valErrs)
		c.Abort()
		return
	}

	if err := storage.UpdateRecord(c.Request.Context(), h.DB, s, recordID, rec); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	doc, err := storage.GetRecord(c.Request.Context(), h.DB, s, recordID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record updated successfully.", "record": doc})
}

// DeleteRow handles DELETE /tables/:name/delete?id=.
func (h *RecordHandler) DeleteRow(c *gin.Context) {
	s, err := h.loadSchema(c)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	recordID := c.Query("id")
	if recordID == "" {
		_ = c.Error(fmt.Errorf("%w: query parameter 'id' is required", auth.ErrBadRequest))
		c.Abort()
		return
	}

	existing, err := storage.GetRecord(c.Request.Context(), h.DB, s, recordID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	allowed, err := authorize(c, s.Permissions.Delete, evalRow(s, existing))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if !allowed {
		_ = c.Error(fmt.Errorf("%w: delete denied on table '%s'", auth.ErrForbidden, s.Name))
		c.Abort()
		return
	}

	if err := storage.DeleteRecord(c.Request.Context(), h.DB, s, recordID); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			// Row vanished between the read and the delete; treat as done.
			c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully."})
			return
		}
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully."})
}
