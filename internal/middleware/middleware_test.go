package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
	"github.com/stemsi/mathcourse-portal/internal/service"
)

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == nil {
		return ""
	}
	return body.Error.Code
}

// ─── API key ────────────────────────────────────────────────────────────────

func TestRequireAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	keys := service.NewAPIKeyService(&config.Config{APIKeySecret: "test-secret"})
	anon, _ := keys.Issue(service.RoleAnon, time.Hour)
	svc, _ := keys.Issue(service.RoleService, time.Hour)

	router := gin.New()
	router.POST("/service", RequireAPIKey(keys, service.RoleService), func(c *gin.Context) {
		if GetAPIKeyClaims(c) == nil {
			t.Error("claims missing from context")
		}
		c.Status(http.StatusOK)
	})
	router.POST("/any", RequireAPIKey(keys, service.RoleAnon), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name     string
		path     string
		key      string
		wantCode int
		wantErr  response.ErrCode
	}{
		{"missing key", "/any", "", http.StatusUnauthorized, response.ErrAPIKeyRequired},
		{"garbage key", "/any", "not-a-jwt", http.StatusUnauthorized, response.ErrAPIKeyInvalid},
		{"anon on anon route", "/any", anon, http.StatusOK, ""},
		{"service on anon route", "/any", svc, http.StatusOK, ""},
		{"anon on service route", "/service", anon, http.StatusForbidden, response.ErrForbidden},
		{"service on service route", "/service", svc, http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			if tc.key != "" {
				req.Header.Set(HeaderAPIKey, tc.key)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if tc.wantErr != "" {
				if got := errorCode(t, rr); got != tc.wantErr {
					t.Fatalf("error code = %s, want %s", got, tc.wantErr)
				}
			}
		})
	}
}

// ─── Admin session ──────────────────────────────────────────────────────────

type fakeSessionValidator struct {
	sessions map[string]*model.SessionInfo
	err      error
}

func (f *fakeSessionValidator) ValidateSession(_ context.Context, token string) (*model.SessionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.sessions[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

func TestRequireAdminSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	info := &model.SessionInfo{AdminID: uuid.New(), Email: "coord@mathcourse.edu", ExpiresAt: time.Now().Add(time.Hour)}
	validator := &fakeSessionValidator{sessions: map[string]*model.SessionInfo{"good": info}}

	router := gin.New()
	router.GET("/me", RequireAdminSession(validator), func(c *gin.Context) {
		if GetSession(c) != info || GetSessionToken(c) != "good" {
			t.Error("session missing from context")
		}
		c.Status(http.StatusOK)
	})

	do := func(header, query string) *httptest.ResponseRecorder {
		target := "/me"
		if query != "" {
			target += "?token=" + query
		}
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if header != "" {
			req.Header.Set("Authorization", "Bearer "+header)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := do("", ""); rr.Code != http.StatusUnauthorized || errorCode(t, rr) != response.ErrTokenRequired {
		t.Fatalf("missing token: got %d %s", rr.Code, rr.Body.String())
	}
	if rr := do("good", ""); rr.Code != http.StatusOK {
		t.Fatalf("bearer token: got %d", rr.Code)
	}
	if rr := do("", "good"); rr.Code != http.StatusOK {
		t.Fatalf("query token: got %d", rr.Code)
	}
	if rr := do("bad", ""); rr.Code != http.StatusUnauthorized || errorCode(t, rr) != response.ErrSessionInvalid {
		t.Fatalf("unknown token: got %d %s", rr.Code, rr.Body.String())
	}

	validator.err = errors.New("database down")
	if rr := do("good", ""); rr.Code != http.StatusServiceUnavailable || errorCode(t, rr) != response.ErrStoreUnavailable {
		t.Fatalf("store outage: got %d %s", rr.Code, rr.Body.String())
	}
}

// ─── Per-IP limiter ─────────────────────────────────────────────────────────

func TestRateLimiterBlocksAndRefills(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute).WithClock(func() time.Time { return now })

	var sawIP string
	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/", func(c *gin.Context) {
		sawIP = service.SourceIPFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := hit(); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rr.Code)
		}
	}
	if sawIP != "192.0.2.1" {
		t.Fatalf("expected source ip in context, got %q", sawIP)
	}

	rr := hit()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}

	now = now.Add(time.Minute)
	if rr := hit(); rr.Code != http.StatusOK {
		t.Fatalf("expected refill after interval, got %d", rr.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute).WithClock(func() time.Time { return now })

	limiter.take("192.0.2.1")
	now = now.Add(4 * time.Minute)
	limiter.cleanup()

	if len(limiter.visitors) != 0 {
		t.Fatalf("expected stale visitor evicted, have %d", len(limiter.visitors))
	}
}

func (rl *RateLimiter) visitorCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func TestRateLimiterStartCleanupRunsInBackground(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(start.UnixNano())

	limiter := NewRateLimiter(1, time.Minute).WithClock(func() time.Time {
		return time.Unix(0, clock.Load()).UTC()
	})
	limiter.cleanupEvery = 5 * time.Millisecond
	limiter.take("192.0.2.1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	returned := make(chan struct{})
	go func() {
		limiter.StartCleanup(ctx)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("StartCleanup blocked the caller")
	}

	clock.Store(start.Add(4 * time.Minute).UnixNano())

	deadline := time.Now().Add(2 * time.Second)
	for limiter.visitorCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background cleanup never evicted the stale visitor")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
