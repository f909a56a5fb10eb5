package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/middleware"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
)

type adminSessions interface {
	AdminProfile(ctx context.Context, adminID uuid.UUID) (*model.AdminUser, error)
	DestroySession(ctx context.Context, token string) error
}

// AuthHandler serves the authenticated admin's own session.
type AuthHandler struct {
	sessions adminSessions
	log      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions adminSessions, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		log:      log.With().Str("component", "auth_handler").Logger(),
	}
}

// GetAdminProfile godoc
// GET /api/v1/admin/me
// Returns the stored profile of the currently authenticated admin.
func (h *AuthHandler) GetAdminProfile(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	admin, err := h.sessions.AdminProfile(c.Request.Context(), session.AdminID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalid)
			return
		}
		h.log.Error().Err(err).Msg("Admin profile lookup failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"admin":      admin,
		"expires_at": session.ExpiresAt,
	})
}

// AdminLogout godoc
// POST /api/v1/admin/logout
// Revokes the session used to authenticate the request.
func (h *AuthHandler) AdminLogout(c *gin.Context) {
	token := middleware.GetSessionToken(c)
	if token == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessions.DestroySession(c.Request.Context(), token); err != nil {
		h.log.Error().Err(err).Msg("Admin logout failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
