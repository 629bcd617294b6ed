package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fluxgallery/internal/config"
	"fluxgallery/internal/security"
)

const ContextUserID = "user_id"

// Auth verifies the bearer token issued by the external identity service and
// binds the caller's user id to the request context. Query-string tokens are
// accepted as a fallback for EventSource clients, which cannot set headers.
func Auth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
		} else if qs := c.Query("access_token"); qs != "" {
			tokenStr = qs
		}

		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTAccessSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)

		c.Next()
	}
}

// CurrentUserID returns the user id bound by Auth.
func CurrentUserID(c *gin.Context) (string, bool) {
	val, exists := c.Get(ContextUserID)
	if !exists {
		return "", false
	}
	userID, ok := val.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
