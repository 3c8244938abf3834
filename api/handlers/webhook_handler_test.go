// api/handlers/webhook_handler_test.go
package handlers_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pulsar-base/pulsar-backend/api/handlers"
	"github.com/pulsar-base/pulsar-backend/api/middleware"
	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/permsync"
)

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "webhook_secret"
	payload := "version=42"

	assert.True(t, handlers.VerifySignature(payload, sign(payload, secret), secret))
	assert.False(t, handlers.VerifySignature(payload, sign(payload, "other_secret"), secret))
	assert.False(t, handlers.VerifySignature("version=43", sign(payload, secret), secret))
	assert.False(t, handlers.VerifySignature(payload, "not-hex-at-all", secret))
}

func webhookRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())

	worker := permsync.NewWorker(nil, cfg)
	handler := handlers.NewWebhookHandler(worker, cfg)
	router.GET("/tables/permissions-webhook", handler.TriggerSync)
	return router
}

func TestTriggerSyncEndpoint(t *testing.T) {
	secret := "webhook_secret"
	cfg := &config.Config{WebhookSecret: secret}
	router := webhookRouter(cfg)

	t.Run("valid signature is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tables/permissions-webhook?version=42", nil)
		req.Header.Set(handlers.SignatureHeader, sign("version=42", secret))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tables/permissions-webhook?version=42", nil)
		req.Header.Set(handlers.SignatureHeader, sign("version=42", "wrong_secret"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tables/permissions-webhook?version=42", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unconfigured secret disables the endpoint", func(t *testing.T) {
		disabled := webhookRouter(&config.Config{})
		req := httptest.NewRequest(http.MethodGet, "/tables/permissions-webhook", nil)
		w := httptest.NewRecorder()
		disabled.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
