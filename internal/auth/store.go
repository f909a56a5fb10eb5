package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/mathcourse-portal/internal/model"
)

// CredentialStore is the service of record for admin identities and sessions.
type CredentialStore interface {
	// LookupAdminByEmail returns ErrNotFound when no identity has this email.
	LookupAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	// CreateSession persists a session for an already password-verified admin.
	CreateSession(ctx context.Context, email, token string) (uuid.UUID, error)
	// ValidateSession returns ErrNotFound for unknown, expired or revoked tokens.
	ValidateSession(ctx context.Context, token string) (*model.SessionInfo, error)
	// DestroySession is idempotent.
	DestroySession(ctx context.Context, token string) error
}

// SessionCache is local key-value persistence scoped to one user profile.
// Get reports ok=false for a missing key.
type SessionCache interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// BatchCache is implemented by caches that can apply several writes atomically.
type BatchCache interface {
	Update(set map[string]string, remove []string) error
}

// Keys persisted in the SessionCache. Both are present or both are absent.
const (
	CacheKeyToken = "admin_session_token"
	CacheKeyUser  = "admin_user"
)
