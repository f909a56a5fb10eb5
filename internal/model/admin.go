package model

import (
	"time"

	"github.com/google/uuid"
)

// Admin is an administrator identity as owned by the credential store.
// Email is unique and compared exactly as stored.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View returns the display-only copy of the identity, without the hash.
func (a *Admin) View() *AdminUser {
	return &AdminUser{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.FullName,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AdminUser is the denormalized identity cached next to a session token.
// It may be stale and is only ever used for display.
type AdminUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateAdminInput is the provisioning payload used by cmd/create-admin.
type CreateAdminInput struct {
	Email    string `validate:"required,email,max=255"`
	FullName string `validate:"required,max=255"`
	Password string `validate:"required,min=8,max=72"`
}
