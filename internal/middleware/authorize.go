package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/internal/models"
)

// RequireRole must run after Auth.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			reject(c, http.StatusUnauthorized, "missing", "Unauthorized")
			return
		}

		if account.Role != role {
			reject(c, http.StatusForbidden, "forbidden", "Forbidden")
			return
		}

		c.Next()
	}
}
