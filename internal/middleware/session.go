package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
)

const (
	// ContextKeySession is the Gin context key for the validated admin session.
	ContextKeySession = "admin_session"
	// ContextKeySessionToken is the Gin context key for the raw session token.
	ContextKeySessionToken = "admin_session_token"
)

type sessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.SessionInfo, error)
}

// RequireAdminSession resolves the admin session token from the Authorization
// header, or from ?token= for WebSocket upgrades which cannot send headers.
func RequireAdminSession(sessions sessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		info, err := sessions.ValidateSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalid)
				return
			}
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
			return
		}

		c.Set(ContextKeySession, info)
		c.Set(ContextKeySessionToken, token)
		c.Next()
	}
}

// GetSession retrieves the admin session from the Gin context.
func GetSession(c *gin.Context) *model.SessionInfo {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	info, ok := val.(*model.SessionInfo)
	if !ok {
		return nil
	}
	return info
}

// GetSessionToken retrieves the raw session token from the Gin context.
func GetSessionToken(c *gin.Context) string {
	return c.GetString(ContextKeySessionToken)
}
