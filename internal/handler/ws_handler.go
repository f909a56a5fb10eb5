package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/cache"
	"github.com/stemsi/mathcourse-portal/internal/middleware"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
	ws "github.com/stemsi/mathcourse-portal/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients such as portalctl send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

type sessionListener interface {
	Listen(ctx context.Context, tokenHash string) (*cache.Subscription, error)
}

// WSHandler streams session lifecycle events to the session holder.
type WSHandler struct {
	events   sessionListener
	log      zerolog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(events sessionListener, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		events:   events,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		now:      time.Now,
	}
}

// SessionStream godoc
// WS /ws/v1/admin/session/stream?token=...
// Pushes "revoked" or "expired" once the session ends, then closes.
// Clients may send {"action":"ping"} and receive {"event":"pong"}.
func (h *WSHandler) SessionStream(c *gin.Context) {
	session := middleware.GetSession(c)
	token := middleware.GetSessionToken(c)
	if session == nil || token == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before upgrading so a revocation racing the handshake is seen.
	sub, err := h.events.Listen(ctx, auth.HashToken(token))
	if err != nil {
		h.log.Error().Err(err).Msg("Session event subscription failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("admin_id", session.AdminID.String()).
		Str("session", auth.Fingerprint(token)).
		Logger()

	if err := ws.WriteTyped(conn, ws.ConnectedResponse{Event: ws.EventConnected, ExpiresAt: session.ExpiresAt}); err != nil {
		return
	}
	wsLog.Info().Msg("Admin attached to session stream")

	actions := make(chan ws.Action)
	go h.readActions(ctx, cancel, conn, actions, wsLog)

	expiry := time.NewTimer(session.ExpiresAt.Sub(h.now()))
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Session stream closed")
			return

		case action := <-actions:
			switch action {
			case ws.ActionPing:
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
			default:
				wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
				ws.WriteError(conn, "unknown action: "+string(action))
			}

		case ev, ok := <-sub.C:
			if !ok {
				ws.WriteError(conn, "event stream interrupted")
				return
			}
			h.endSession(conn, wsLog, sessionEndEvent(ev.Kind), ev.At)
			return

		case <-expiry.C:
			h.endSession(conn, wsLog, ws.EventExpired, session.ExpiresAt)
			return
		}
	}
}

func (h *WSHandler) readActions(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- ws.Action, log zerolog.Logger) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		select {
		case out <- msg.Action:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WSHandler) endSession(conn *websocket.Conn, log zerolog.Logger, event ws.Event, at time.Time) {
	if err := ws.WriteTyped(conn, ws.SessionEndedResponse{Event: event, At: at}); err != nil {
		log.Debug().Err(err).Msg("Session end notification not delivered")
		return
	}
	_ = ws.CloseNormal(conn, string(event))
	log.Info().Str("event", string(event)).Msg("Session ended, stream closed")
}

func sessionEndEvent(kind model.SessionEventKind) ws.Event {
	if kind == model.SessionEventExpired {
		return ws.EventExpired
	}
	return ws.EventRevoked
}
