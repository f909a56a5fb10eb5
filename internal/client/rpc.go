package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
)

const (
	rpcPath         = "/rest/v1/rpc/"
	maxResponseSize = 1 << 20
	// DefaultTimeout bounds a single RPC round trip.
	DefaultTimeout = 10 * time.Second
)

// APIError is a non-success answer from the credential store.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("credential store: http %d", e.Status)
	}
	return fmt.Sprintf("credential store: http %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the credential store RPC surface. It implements auth.CredentialStore.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. The http.Client is copied, so a
// client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// New creates a Client for the service at baseURL authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupAdminByEmail calls get_admin_user.
func (c *Client) LookupAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var rows []model.AdminRecord
	if err := c.call(ctx, "get_admin_user", model.GetAdminUserRequest{UserEmail: email}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, auth.ErrNotFound
	}
	return rows[0].Admin(), nil
}

// CreateSession calls create_admin_session.
func (c *Client) CreateSession(ctx context.Context, email, token string) (uuid.UUID, error) {
	var out model.CreateAdminSessionResponse
	err := c.call(ctx, "create_admin_session", model.CreateAdminSessionRequest{UserEmail: email, Token: token}, &out)
	if err != nil {
		return uuid.Nil, err
	}
	return out.SessionID, nil
}

// ValidateSession calls validate_admin_session.
func (c *Client) ValidateSession(ctx context.Context, token string) (*model.SessionInfo, error) {
	var rows []model.SessionInfo
	if err := c.call(ctx, "validate_admin_session", model.SessionTokenRequest{Token: token}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, auth.ErrNotFound
	}
	return &rows[0], nil
}

// DestroySession calls destroy_admin_session.
func (c *Client) DestroySession(ctx context.Context, token string) error {
	var out model.DestroyAdminSessionResponse
	return c.call(ctx, "destroy_admin_session", model.SessionTokenRequest{Token: token}, &out)
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) call(ctx context.Context, rpc string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", rpc, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rpcPath+rpc, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", rpc, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", rpc, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", rpc, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return auth.ErrThrottled
	case resp.StatusCode == http.StatusNotFound && decodeErr == nil && env.Error != nil && env.Error.Code == response.ErrNotFound:
		// Only the service's own NOT_FOUND means "no such record"; a bare 404
		// from a proxy or a wrong base URL is an outage.
		return auth.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	case decodeErr != nil:
		return fmt.Errorf("decode %s response: %w", rpc, decodeErr)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", rpc, err)
	}
	return nil
}

var _ auth.CredentialStore = (*Client)(nil)
