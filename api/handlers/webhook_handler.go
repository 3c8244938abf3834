// api/handlers/webhook_handler.go
package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/auth"
	"github.com/pulsar-base/pulsar-backend/internal/permsync"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw query string,
// keyed with the shared webhook secret.
const SignatureHeader = "X-Pulsar-Signature"

// WebhookHandler receives permission change notifications from the external
// rule manager and nudges the sync worker.
type WebhookHandler struct {
	Worker *permsync.Worker
	Cfg    *config.Config
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(worker *permsync.Worker, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		Worker: worker,
		Cfg:    cfg,
	}
}

// VerifySignature checks a webhook signature against the shared secret.
func VerifySignature(payload, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// TriggerSync handles GET /tables/permissions-webhook. The endpoint is
// unauthenticated; the HMAC signature over the raw query string is the proof
// the caller holds the shared secret. The sync itself runs asynchronously, so
// a valid call is acknowledged with 202 before any document is fetched.
func (h *WebhookHandler) TriggerSync(c *gin.Context) {
	if h.Cfg.WebhookSecret == "" {
		_ = c.Error(fmt.Errorf("%w: webhook is not configured", auth.ErrForbidden))
		c.Abort()
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" || !VerifySignature(c.Request.URL.RawQuery, signature, h.Cfg.WebhookSecret) {
		customLog.Warnf("Webhook: Rejected trigger with bad signature from %s", c.ClientIP())
		_ = c.Error(fmt.Errorf("%w: invalid webhook signature", auth.ErrUnauthorized))
		c.Abort()
		return
	}

	h.Worker.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"message": "Permission sync scheduled."})
}
