package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is the result of a successful admin login.
type Session struct {
	Token     string    `json:"token"`
	AdminID   uuid.UUID `json:"admin_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRecord is a persisted session row. Only the token hash is stored.
type SessionRecord struct {
	ID        uuid.UUID
	TokenHash string
	AdminID   uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionInfo is what validate_admin_session returns for a live session.
type SessionInfo struct {
	AdminID   uuid.UUID `json:"admin_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *SessionInfo) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// User maps session info to the display identity.
func (s *SessionInfo) User() *AdminUser {
	return &AdminUser{ID: s.AdminID, Email: s.Email, FullName: s.FullName}
}

// SessionEventKind enumerates events published on a session's channel.
type SessionEventKind string

const (
	SessionEventRevoked SessionEventKind = "revoked"
	SessionEventExpired SessionEventKind = "expired"
)

// SessionEvent is published when a session ends server-side.
type SessionEvent struct {
	Kind SessionEventKind `json:"kind"`
	At   time.Time        `json:"at"`
}
