package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventConnected Event = "connected"
	EventRevoked   Event = "revoked"
	EventExpired   Event = "expired"
	EventPong      Event = "pong"
	EventError     Event = "error"
)

// ServerMessage is the union of everything the server sends. Clients switch on Event.
type ServerMessage struct {
	Event     Event      `json:"event"`
	At        *time.Time `json:"at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ConnectedResponse confirms the stream and reports when the session ends.
type ConnectedResponse struct {
	Event     Event     `json:"event"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionEndedResponse reports that the session was revoked or expired.
type SessionEndedResponse struct {
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e == EventRevoked || e == EventExpired
}
