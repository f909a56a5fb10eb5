package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
	"github.com/stemsi/mathcourse-portal/internal/validator"
)

type credentialService interface {
	CheckLoginRate(ctx context.Context, email string) error
	LookupAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	CreateSession(ctx context.Context, email, token string) (uuid.UUID, error)
	ValidateSession(ctx context.Context, token string) (*model.SessionInfo, error)
	DestroySession(ctx context.Context, token string) error
}

// RPCHandler exposes the credential store as RPC endpoints.
type RPCHandler struct {
	creds credentialService
	log   zerolog.Logger
}

// NewRPCHandler creates a new RPCHandler.
func NewRPCHandler(creds credentialService, log zerolog.Logger) *RPCHandler {
	return &RPCHandler{
		creds: creds,
		log:   log.With().Str("component", "rpc_handler").Logger(),
	}
}

// GetAdminUser godoc
// POST /rest/v1/rpc/get_admin_user
// Returns the admin record for an email, hash included, as a zero or one element array.
func (h *RPCHandler) GetAdminUser(c *gin.Context) {
	var req model.GetAdminUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	if err := h.creds.CheckLoginRate(ctx, req.UserEmail); err != nil {
		if errors.Is(err, auth.ErrThrottled) {
			response.Fail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		h.log.Error().Err(err).Msg("Login rate check failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	admin, err := h.creds.LookupAdminByEmail(ctx, req.UserEmail)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.Success(c, http.StatusOK, []model.AdminRecord{})
			return
		}
		h.log.Error().Err(err).Msg("Admin lookup failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusOK, []model.AdminRecord{model.NewAdminRecord(admin)})
}

// CreateAdminSession godoc
// POST /rest/v1/rpc/create_admin_session
// Persists a session for an already verified admin.
func (h *RPCHandler) CreateAdminSession(c *gin.Context) {
	var req model.CreateAdminSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	id, err := h.creds.CreateSession(c.Request.Context(), req.UserEmail, req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Session creation failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusCreated, model.CreateAdminSessionResponse{SessionID: id})
}

// ValidateAdminSession godoc
// POST /rest/v1/rpc/validate_admin_session
// Returns the session owner as a one element array, or an empty array when
// the token is unknown or expired.
func (h *RPCHandler) ValidateAdminSession(c *gin.Context) {
	var req model.SessionTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	info, err := h.creds.ValidateSession(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.Success(c, http.StatusOK, []model.SessionInfo{})
			return
		}
		h.log.Error().Err(err).Msg("Session validation failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusOK, []model.SessionInfo{*info})
}

// DestroyAdminSession godoc
// POST /rest/v1/rpc/destroy_admin_session
// Revokes a session. Unknown tokens succeed.
func (h *RPCHandler) DestroyAdminSession(c *gin.Context) {
	var req model.SessionTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.creds.DestroySession(c.Request.Context(), req.Token); err != nil {
		h.log.Error().Err(err).Msg("Session destroy failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusOK, model.DestroyAdminSessionResponse{Success: true})
}
