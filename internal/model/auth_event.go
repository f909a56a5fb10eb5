package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthEventKind classifies an audit record.
type AuthEventKind string

const (
	AuthEventLookupUnknown    AuthEventKind = "lookup_unknown_email"
	AuthEventLookupThrottled  AuthEventKind = "lookup_throttled"
	AuthEventSessionIssued    AuthEventKind = "session_issued"
	AuthEventSessionDestroyed AuthEventKind = "session_destroyed"
	AuthEventSessionExpired   AuthEventKind = "session_expired"
)

// AuthEvent is one row of the admin_auth_events audit log.
type AuthEvent struct {
	ID        int64         `json:"id"`
	Kind      AuthEventKind `json:"kind"`
	Email     string        `json:"email,omitempty"`
	SourceIP  string        `json:"source_ip,omitempty"`
	AdminID   *uuid.UUID    `json:"admin_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
