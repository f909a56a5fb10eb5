package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	ws "github.com/stemsi/mathcourse-portal/internal/websocket"
)

const (
	streamPath   = "/ws/v1/admin/session/stream"
	pingInterval = 30 * time.Second
)

// Stream is an open session event stream.
type Stream struct {
	conn *websocket.Conn
}

// DialSessionStream opens the event stream for the session identified by token.
// An unknown or expired session yields auth.ErrNotFound.
func (c *Client) DialSessionStream(ctx context.Context, token string) (*Stream, error) {
	u, err := url.Parse(c.baseURL + streamPath)
	if err != nil {
		return nil, fmt.Errorf("stream url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {token}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.http.Timeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("dial session stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next server message.
func (s *Stream) Next() (ws.ServerMessage, error) {
	var msg ws.ServerMessage
	err := s.conn.ReadJSON(&msg)
	return msg, err
}

// Ping asks the server for a pong.
func (s *Stream) Ping() error {
	return ws.WriteTyped(s.conn, ws.RequestEnvelope{Action: ws.ActionPing})
}

// Close closes the connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// WatchSession follows the session's stream, reconnecting with exponential
// backoff, until the session ends or ctx is cancelled. Every message is passed
// to onMessage. It returns the terminal event.
func (c *Client) WatchSession(ctx context.Context, token string, onMessage func(ws.ServerMessage), onRetry func(error, time.Duration)) (ws.Event, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Second
	exp.MaxInterval = time.Minute
	exp.MaxElapsedTime = 0

	var final ws.Event
	op := func() error {
		stream, err := c.DialSessionStream(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer stream.Close()
		exp.Reset()

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					stream.Close()
					return
				case <-ticker.C:
					if stream.Ping() != nil {
						return
					}
				}
			}
		}()

		for {
			msg, err := stream.Next()
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			if onMessage != nil {
				onMessage(msg)
			}
			if msg.Event.Terminal() {
				final = msg.Event
				return nil
			}
		}
	}

	notify := func(err error, d time.Duration) {
		if onRetry != nil {
			onRetry(err, d)
		}
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(exp, ctx), notify); err != nil {
		return "", err
	}
	return final, nil
}
