package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/cache"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/handler"
	"github.com/stemsi/mathcourse-portal/internal/middleware"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/router"
	"github.com/stemsi/mathcourse-portal/internal/service"
	"github.com/stemsi/mathcourse-portal/internal/sessioncache"
	"github.com/stemsi/mathcourse-portal/internal/validator"
	ws "github.com/stemsi/mathcourse-portal/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// ─── Server-side fakes ──────────────────────────────────────────────────────

type memoryStore struct {
	mu        sync.Mutex
	admin     *model.Admin
	sessions  map[string]*model.SessionInfo
	throttled bool
	down      bool
	events    map[string]chan model.SessionEvent
}

func (s *memoryStore) update(fn func(s *memoryStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *memoryStore) CheckLoginRate(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.throttled {
		return auth.ErrThrottled
	}
	return nil
}

func (s *memoryStore) LookupAdminByEmail(_ context.Context, email string) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("database down")
	}
	if s.admin.Email != email {
		return nil, auth.ErrNotFound
	}
	return s.admin, nil
}

func (s *memoryStore) CreateSession(_ context.Context, email, token string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return uuid.Nil, errors.New("database down")
	}
	s.sessions[token] = &model.SessionInfo{
		AdminID:   s.admin.ID,
		Email:     s.admin.Email,
		FullName:  s.admin.FullName,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	return uuid.New(), nil
}

func (s *memoryStore) ValidateSession(_ context.Context, token string) (*model.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("database down")
	}
	info, ok := s.sessions[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

func (s *memoryStore) DestroySession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errors.New("database down")
	}
	delete(s.sessions, token)
	if ch, ok := s.events[auth.HashToken(token)]; ok {
		ch <- model.SessionEvent{Kind: model.SessionEventRevoked, At: time.Now()}
	}
	return nil
}

func (s *memoryStore) AdminProfile(_ context.Context, id uuid.UUID) (*model.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("database down")
	}
	if s.admin.ID != id {
		return nil, auth.ErrNotFound
	}
	return s.admin.View(), nil
}

func (s *memoryStore) Listen(_ context.Context, hash string) (*cache.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan model.SessionEvent, 1)
	s.events[hash] = ch
	return cache.NewSubscription(ch, nil), nil
}

type harness struct {
	store  *memoryStore
	client *Client
}

func newHarness(t *testing.T, role service.APIKeyRole) *harness {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &memoryStore{
		admin: &model.Admin{
			ID:           uuid.New(),
			Email:        "coord@mathcourse.edu",
			FullName:     "Coordenadora",
			PasswordHash: string(hash),
		},
		sessions: map[string]*model.SessionInfo{},
		events:   map[string]chan model.SessionEvent{},
	}

	cfg := &config.Config{GinMode: gin.TestMode, APIKeySecret: "test-secret"}
	keys := service.NewAPIKeyService(cfg)
	log := zerolog.New(io.Discard)

	engine := router.SetupRouter(router.Deps{
		APIKeys:  keys,
		Sessions: store,
		Limiter:  middleware.NewRateLimiter(1000, time.Minute),
	}, &router.Handlers{
		RPC:  handler.NewRPCHandler(store, log),
		Auth: handler.NewAuthHandler(store, log),
		WS:   handler.NewWSHandler(store, log, nil),
	}, cfg)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	key, err := keys.Issue(role, time.Hour)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	return &harness{store: store, client: New(srv.URL, key, WithTimeout(5*time.Second))}
}

// ─── RPC client ─────────────────────────────────────────────────────────────

func TestClientLookup(t *testing.T) {
	h := newHarness(t, service.RoleService)
	ctx := context.Background()

	admin, err := h.client.LookupAdminByEmail(ctx, "coord@mathcourse.edu")
	if err != nil {
		t.Fatalf("LookupAdminByEmail: %v", err)
	}
	if admin.ID != h.store.admin.ID || admin.PasswordHash != h.store.admin.PasswordHash {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	if _, err := h.client.LookupAdminByEmail(ctx, "ghost@mathcourse.edu"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected auth.ErrNotFound, got %v", err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	h := newHarness(t, service.RoleService)
	ctx := context.Background()

	h.store.update(func(s *memoryStore) { s.throttled = true })
	if _, err := h.client.LookupAdminByEmail(ctx, "coord@mathcourse.edu"); !errors.Is(err, auth.ErrThrottled) {
		t.Fatalf("expected auth.ErrThrottled, got %v", err)
	}

	h.store.update(func(s *memoryStore) { s.throttled, s.down = false, true })
	_, err := h.client.ValidateSession(ctx, "anything")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 503 || apiErr.Code != "STORE_UNAVAILABLE" {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
}

func TestClientAnonKeyCannotReadCredentials(t *testing.T) {
	h := newHarness(t, service.RoleAnon)

	_, err := h.client.LookupAdminByEmail(context.Background(), "coord@mathcourse.edu")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 403 {
		t.Fatalf("expected 403 for anon key, got %v", err)
	}

	if _, err := h.client.ValidateSession(context.Background(), "x"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("anon key may validate sessions, got %v", err)
	}
}

// ─── Authenticator over HTTP ────────────────────────────────────────────────

func TestAuthenticatorOverHTTP(t *testing.T) {
	h := newHarness(t, service.RoleService)
	ctx := context.Background()
	local := sessioncache.NewMemory()
	a := auth.New(h.client, local, zerolog.New(io.Discard))

	if _, err := a.Login(ctx, "coord@mathcourse.edu", "wrong password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Login(ctx, "ghost@mathcourse.edu", "correct horse"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	session, err := a.Login(ctx, "coord@mathcourse.edu", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(session.Token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(session.Token))
	}

	user, err := a.ValidateSession(ctx, session.Token)
	if err != nil || user.Email != "coord@mathcourse.edu" {
		t.Fatalf("ValidateSession: %v %+v", err, user)
	}

	a.Logout(ctx, "")
	if _, err := a.ValidateSession(ctx, session.Token); !errors.Is(err, auth.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession after logout, got %v", err)
	}
	if local.Len() != 0 {
		t.Fatal("logout must clear the local cache")
	}
}

func TestAuthenticatorStoreUnavailableOverHTTP(t *testing.T) {
	h := newHarness(t, service.RoleService)
	h.store.update(func(s *memoryStore) { s.down = true })
	a := auth.New(h.client, sessioncache.NewMemory(), zerolog.New(io.Discard))

	_, err := a.Login(context.Background(), "coord@mathcourse.edu", "correct horse")
	if !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if a.FailedAttempts() != 0 {
		t.Fatal("outages must not count as failed attempts")
	}
}

// ─── Session stream ─────────────────────────────────────────────────────────

func TestWatchSessionEndsOnRevoke(t *testing.T) {
	h := newHarness(t, service.RoleService)
	token := strings.Repeat("0f", 32)
	h.store.update(func(s *memoryStore) {
		s.sessions[token] = &model.SessionInfo{AdminID: s.admin.ID, ExpiresAt: time.Now().Add(time.Hour)}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connected := make(chan struct{})
	var once sync.Once
	result := make(chan ws.Event, 1)
	go func() {
		ev, err := h.client.WatchSession(ctx, token, func(msg ws.ServerMessage) {
			if msg.Event == ws.EventConnected {
				once.Do(func() { close(connected) })
			}
		}, nil)
		if err != nil {
			t.Errorf("WatchSession: %v", err)
		}
		result <- ev
	}()

	select {
	case <-connected:
	case <-ctx.Done():
		t.Fatal("stream never connected")
	}

	if err := h.client.DestroySession(ctx, token); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}

	select {
	case ev := <-result:
		if ev != ws.EventRevoked {
			t.Fatalf("expected revoked, got %q", ev)
		}
	case <-ctx.Done():
		t.Fatal("watch did not end after revoke")
	}
}

func TestWatchSessionUnknownTokenIsPermanent(t *testing.T) {
	h := newHarness(t, service.RoleService)

	retries := 0
	_, err := h.client.WatchSession(context.Background(), "nope", nil, func(error, time.Duration) { retries++ })
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected auth.ErrNotFound, got %v", err)
	}
	if retries != 0 {
		t.Fatalf("unknown session must not be retried, got %d retries", retries)
	}
}

// ─── Error mapping ──────────────────────────────────────────────────────────

func TestBare404IsStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(srv.URL, "key")
	if _, err := c.LookupAdminByEmail(context.Background(), "coord@mathcourse.edu"); errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("bare 404 mapped to ErrNotFound: %v", err)
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			t.Fatalf("expected *APIError with 404, got %v", err)
		}
	}

	local := sessioncache.NewMemory()
	a := auth.New(c, local, zerolog.Nop())

	_, err := a.Login(context.Background(), "coord@mathcourse.edu", "whatever-password")
	if !errors.Is(err, auth.ErrStoreUnavailable) || errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrStoreUnavailable", err)
	}
	if a.FailedAttempts() != 0 {
		t.Fatalf("outage counted as a failed attempt: %d", a.FailedAttempts())
	}

	_ = local.Set(auth.CacheKeyToken, strings.Repeat("a", 64))
	_ = local.Set(auth.CacheKeyUser, `{"email":"coord@mathcourse.edu"}`)
	if _, err := a.Restore(context.Background()); !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Fatalf("Restore error = %v, want ErrStoreUnavailable", err)
	}
	if local.Len() != 2 {
		t.Fatalf("cached session purged on outage, %d keys left", local.Len())
	}
}

func TestEnvelopeNotFoundIsErrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"data":null,"error":{"code":"NOT_FOUND","message":"nao encontrado"},"metadata":{}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	if _, err := c.CreateSession(context.Background(), "ghost@mathcourse.edu", strings.Repeat("b", 64)); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("CreateSession error = %v, want ErrNotFound", err)
	}
}

func TestWithTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c := New("http://localhost", "key", WithHTTPClient(shared), WithTimeout(3*time.Second))

	if shared.Timeout != time.Minute {
		t.Fatalf("shared client timeout changed to %v", shared.Timeout)
	}
	if c.http.Timeout != 3*time.Second {
		t.Fatalf("client timeout = %v, want 3s", c.http.Timeout)
	}
}
