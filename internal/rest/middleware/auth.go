package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/gin-gonic/gin"
)

// HeaderWebhookSecret carries the shared secret the provider signs its webhooks with
const HeaderWebhookSecret = "X-Webhook-Secret"

// GuestAuthenticateMiddleware records the acting user forwarded by the gateway.
// Requests without one act as the system user.
func GuestAuthenticateMiddleware(c *gin.Context) {
	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		userID = types.DefaultUserID
	}
	c.Request = c.Request.WithContext(types.SetUserID(c.Request.Context(), userID))
	c.Next()
}

// WebhookAuthMiddleware rejects provider webhooks that do not carry the configured secret.
// It lets every request through when no secret is configured.
func WebhookAuthMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	secret := []byte(cfg.Provider.WebhookSecret)

	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		got := []byte(c.GetHeader(HeaderWebhookSecret))
		if subtle.ConstantTimeCompare(got, secret) != 1 {
			logger.Warnw("rejected provider webhook",
				"path", c.Request.URL.Path,
				"remote_addr", c.ClientIP(),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(types.SetUserID(c.Request.Context(), types.DefaultUserID))
		c.Next()
	}
}
