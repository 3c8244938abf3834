// api/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pulsar-base/pulsar-backend/internal/auth"
	"github.com/pulsar-base/pulsar-backend/internal/schema"
	"github.com/pulsar-base/pulsar-backend/internal/storage"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request using subsequent handlers
		c.Next()

		// Check if any errors were attached during handler execution
		if len(c.Errors) == 0 {
			return
		}

		// We only handle the last error for the response.
		err := c.Errors.Last().Err

		customLog.Printf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		// --- Map error to HTTP status code and user message ---
		var statusCode int
		var userMessage string

		// Field validation failures carry a per-field message map and get their
		// own response shape.
		var fieldErrs schema.ValidationErrors
		if errors.As(err, &fieldErrs) {
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
					"error":  "validation failed",
					"fields": fieldErrs,
				})
			}
			return
		}

		switch {
		case errors.Is(err, storage.ErrSchemaNotFound),
			errors.Is(err, storage.ErrRecordNotFound):
			statusCode = http.StatusNotFound
			userMessage = err.Error()
		case errors.Is(err, storage.ErrSchemaExists),
			errors.Is(err, storage.ErrUniqueViolation),
			errors.Is(err, storage.ErrRelationNotFound),
			errors.Is(err, storage.ErrInvalidFilterValue),
			errors.Is(err, schema.ErrInvalidSchema),
			errors.Is(err, auth.ErrBadRequest):
			statusCode = http.StatusBadRequest
			userMessage = err.Error()
		case errors.Is(err, auth.ErrTokenMalformed),
			errors.Is(err, auth.ErrTokenInvalid),
			errors.Is(err, auth.ErrTokenClaimsInvalid),
			errors.Is(err, auth.ErrUnexpectedSigningMethod):
			statusCode = http.StatusUnauthorized
			userMessage = "Invalid or malformed authentication token."
		case errors.Is(err, auth.ErrTokenExpired):
			statusCode = http.StatusUnauthorized
			userMessage = "Authentication token has expired."
		case errors.Is(err, auth.ErrUnauthorized):
			statusCode = http.StatusUnauthorized
			userMessage = err.Error()
		case errors.Is(err, auth.ErrForbidden):
			statusCode = http.StatusForbidden
			userMessage = "You are not allowed to perform this operation."
		default:
			if validationErrs, ok := err.(validator.ValidationErrors); ok {
				// Handle binding errors from c.ShouldBindJSON
				statusCode = http.StatusBadRequest
				userMessage = "Validation failed. Please check your input."
				for _, fe := range validationErrs {
					customLog.Printf("Validation Error: Field %s failed on %s", fe.Field(), fe.Tag())
				}
				break
			}
			// Assume internal server error for unexpected types. The response
			// stays opaque; the original error goes to the log only.
			statusCode = http.StatusInternalServerError
			userMessage = "An unexpected internal server error occurred."
			customLog.Printf("Unhandled error type: %T, Error: %v", err, err)
		}

		// Abort execution and send JSON response
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, gin.H{"error": userMessage})
		} else {
			customLog.Printf("[ErrorHandler] Warning: Response already written before handling error.")
		}
	}
}
