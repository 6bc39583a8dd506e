package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/repository"
	"eventhub/internal/security"
)

const (
	currentAccountKey = "current_account"
	accessTokenKey    = "access_token"
	bearerPrefix      = "Bearer "
)

type TokenVerifier interface {
	Verify(token string) (security.SessionClaims, error)
}

type AccountFinder interface {
	FindByEmail(ctx context.Context, role models.Role, email string) (models.Account, error)
}

// Auth resolves the bearer token to the account that currently holds it. A
// token that verifies but is no longer the account's stored token has been
// superseded by a later login and is rejected.
func Auth(tokens TokenVerifier, accounts AccountFinder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			reject(c, http.StatusUnauthorized, "missing", "Unauthorized")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				reject(c, http.StatusUnauthorized, "expired", "Token expired")
			case errors.Is(err, security.ErrTokenInvalidSignature):
				reject(c, http.StatusUnauthorized, "signature", "Invalid token signature")
			default:
				reject(c, http.StatusUnauthorized, "malformed", "Invalid token")
			}
			return
		}

		account, err := accounts.FindByEmail(c.Request.Context(), claims.Role, claims.Email)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				reject(c, http.StatusUnauthorized, "unknown", "Unauthorized")
				return
			}
			log.Error().
				Err(err).
				Str("request_id", RequestIDFrom(c)).
				Msg("auth account lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if !account.HoldsToken(tokenStr) {
			reject(c, http.StatusUnauthorized, "superseded", "Unauthorized")
			return
		}

		c.Set(accessTokenKey, tokenStr)
		c.Set(currentAccountKey, account)

		c.Next()
	}
}

func CurrentAccount(c *gin.Context) (models.Account, bool) {
	v, ok := c.Get(currentAccountKey)
	if !ok {
		return models.Account{}, false
	}
	account, ok := v.(models.Account)
	return account, ok
}

func reject(c *gin.Context, status int, reason string, message string) {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
