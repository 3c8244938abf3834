// api/middleware/error_handler_test.go
package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pulsar-base/pulsar-backend/api/middleware"
	"github.com/pulsar-base/pulsar-backend/internal/auth"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
	"github.com/pulsar-base/pulsar-backend/internal/storage"
)

func errorRouter(err error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(err)
		c.Abort()
	})
	return router
}

func TestErrorHandlerStatusMapping(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"schema not found", storage.ErrSchemaNotFound, http.StatusNotFound},
		{"record not found", storage.ErrRecordNotFound, http.StatusNotFound},
		// Name collisions and constraint violations are client errors.
		{"schema exists", storage.ErrSchemaExists, http.StatusBadRequest},
		{"unique violation", fmt.Errorf("%w on column 'slug'", storage.ErrUniqueViolation), http.StatusBadRequest},
		{"relation not found", storage.ErrRelationNotFound, http.StatusBadRequest},
		{"invalid filter", storage.ErrInvalidFilterValue, http.StatusBadRequest},
		{"invalid schema", fmt.Errorf("%w: duplicate field", schema.ErrInvalidSchema), http.StatusBadRequest},
		{"bad request", auth.ErrBadRequest, http.StatusBadRequest},
		{"expired token", auth.ErrTokenExpired, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: admin role required", auth.ErrForbidden), http.StatusForbidden},
		{"unknown error", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/boom", nil)
			errorRouter(tc.err).ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestErrorHandlerValidationErrors(t *testing.T) {
	errs := schema.ValidationErrors{"title": "value is required", "views": "must be at least 0"}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	errorRouter(errs).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"fields"`)
	assert.Contains(t, w.Body.String(), `"title":"value is required"`)
}
