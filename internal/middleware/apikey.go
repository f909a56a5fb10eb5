package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/mathcourse-portal/internal/response"
	"github.com/stemsi/mathcourse-portal/internal/service"
)

const (
	// HeaderAPIKey carries the caller's API key on RPC requests.
	HeaderAPIKey = "apikey"
	// ContextKeyAPIKey is the Gin context key for validated API key claims.
	ContextKeyAPIKey = "api_key_claims"
)

type apiKeyValidator interface {
	Validate(tokenStr string) (*service.APIKeyClaims, error)
}

// RequireAPIKey validates the apikey header and checks that its role grants need.
func RequireAPIKey(keys apiKeyValidator, need service.APIKeyRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderAPIKey)
		if raw == "" {
			raw = bearerToken(c)
		}
		if raw == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrAPIKeyRequired)
			return
		}

		claims, err := keys.Validate(raw)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrAPIKeyInvalid)
			return
		}

		if !claims.Role.Allows(need) {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}

		c.Set(ContextKeyAPIKey, claims)
		c.Next()
	}
}

// GetAPIKeyClaims retrieves the API key claims from the Gin context.
func GetAPIKeyClaims(c *gin.Context) *service.APIKeyClaims {
	val, exists := c.Get(ContextKeyAPIKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.APIKeyClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
