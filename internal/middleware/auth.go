package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/safegate/internal/config"
)

const HeaderGatewayKey = "X-Gateway-Key"

// AuthMiddleware gates the API behind a shared gateway key. The service
// fronts an internal custodial backend, so a single static key is enough;
// per-user identity travels in the request body, not in the credential.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Auth.RequireAPIKey {
			c.Next()
			return
		}

		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.Auth.APIKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
