package model

import (
	"time"

	"github.com/google/uuid"
)

// GetAdminUserRequest is the body of the get_admin_user RPC.
type GetAdminUserRequest struct {
	UserEmail string `json:"user_email" binding:"required,max=255"`
}

// CreateAdminSessionRequest is the body of the create_admin_session RPC.
type CreateAdminSessionRequest struct {
	UserEmail string `json:"user_email" binding:"required,max=255"`
	Token     string `json:"token" binding:"required,session_token"`
}

// SessionTokenRequest is the body of validate_admin_session and destroy_admin_session.
// Malformed tokens are answered as unknown sessions, not as validation errors.
type SessionTokenRequest struct {
	Token string `json:"token" binding:"max=512"`
}

// AdminRecord is one row returned by get_admin_user, hash included.
type AdminRecord struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAdminRecord exposes an Admin over the RPC surface.
func NewAdminRecord(a *Admin) AdminRecord {
	return AdminRecord{
		ID:           a.ID,
		Email:        a.Email,
		FullName:     a.FullName,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// Admin converts the record back into the domain identity.
func (r AdminRecord) Admin() *Admin {
	return &Admin{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CreateAdminSessionResponse is the result of create_admin_session.
type CreateAdminSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
}

// DestroyAdminSessionResponse is the result of destroy_admin_session.
type DestroyAdminSessionResponse struct {
	Success bool `json:"success"`
}
