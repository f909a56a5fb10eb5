package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
	"github.com/stemsi/mathcourse-portal/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type fakeCredentials struct {
	admin     *model.Admin
	sessions  map[string]*model.SessionInfo
	throttled bool
	err       error
	destroyed []string
}

func (f *fakeCredentials) CheckLoginRate(context.Context, string) error {
	if f.throttled {
		return auth.ErrThrottled
	}
	return nil
}

func (f *fakeCredentials) LookupAdminByEmail(_ context.Context, email string) (*model.Admin, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.admin == nil || f.admin.Email != email {
		return nil, auth.ErrNotFound
	}
	return f.admin, nil
}

func (f *fakeCredentials) CreateSession(_ context.Context, email, token string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if f.admin == nil || f.admin.Email != email {
		return uuid.Nil, auth.ErrNotFound
	}
	f.sessions[token] = &model.SessionInfo{AdminID: f.admin.ID, Email: email, ExpiresAt: time.Now().Add(time.Hour)}
	return uuid.New(), nil
}

func (f *fakeCredentials) ValidateSession(_ context.Context, token string) (*model.SessionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.sessions[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

func (f *fakeCredentials) DestroySession(_ context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.destroyed = append(f.destroyed, token)
	delete(f.sessions, token)
	return nil
}

func (f *fakeCredentials) AdminProfile(_ context.Context, id uuid.UUID) (*model.AdminUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.admin == nil || f.admin.ID != id {
		return nil, auth.ErrNotFound
	}
	return f.admin.View(), nil
}

func newRPCRouter(creds *fakeCredentials) *gin.Engine {
	h := NewRPCHandler(creds, zerolog.New(io.Discard))
	r := gin.New()
	rpc := r.Group("/rest/v1/rpc")
	rpc.POST("/get_admin_user", h.GetAdminUser)
	rpc.POST("/create_admin_session", h.CreateAdminSession)
	rpc.POST("/validate_admin_session", h.ValidateAdminSession)
	rpc.POST("/destroy_admin_session", h.DestroyAdminSession)
	return r
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func call(t *testing.T, r http.Handler, rpc string, body interface{}) (int, envelope) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/rest/v1/rpc/"+rpc, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s response: %v (%s)", rpc, err, rr.Body.String())
	}
	return rr.Code, env
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{
		admin: &model.Admin{
			ID:           uuid.New(),
			Email:        "coord@mathcourse.edu",
			FullName:     "Coordenadora",
			PasswordHash: "$2a$12$hash",
		},
		sessions: map[string]*model.SessionInfo{},
	}
}

func TestGetAdminUser(t *testing.T) {
	creds := newFakeCredentials()
	r := newRPCRouter(creds)

	code, env := call(t, r, "get_admin_user", gin.H{"user_email": "coord@mathcourse.edu"})
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var rows []model.AdminRecord
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].PasswordHash != "$2a$12$hash" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	code, env = call(t, r, "get_admin_user", gin.H{"user_email": "ghost@mathcourse.edu"})
	if code != http.StatusOK || strings.TrimSpace(string(env.Data)) != "[]" {
		t.Fatalf("unknown email: status %d data %s", code, env.Data)
	}

	code, env = call(t, r, "get_admin_user", gin.H{})
	if code != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Fatalf("missing email: status %d error %+v", code, env.Error)
	}
}

func TestGetAdminUserThrottledAndUnavailable(t *testing.T) {
	creds := newFakeCredentials()
	r := newRPCRouter(creds)

	creds.throttled = true
	code, env := call(t, r, "get_admin_user", gin.H{"user_email": "coord@mathcourse.edu"})
	if code != http.StatusTooManyRequests || env.Error.Code != response.ErrRateLimitExceeded {
		t.Fatalf("throttled: status %d error %+v", code, env.Error)
	}

	creds.throttled = false
	creds.err = errors.New("database down")
	code, env = call(t, r, "get_admin_user", gin.H{"user_email": "coord@mathcourse.edu"})
	if code != http.StatusServiceUnavailable || env.Error.Code != response.ErrStoreUnavailable {
		t.Fatalf("unavailable: status %d error %+v", code, env.Error)
	}
}

func TestSessionRPCLifecycle(t *testing.T) {
	creds := newFakeCredentials()
	r := newRPCRouter(creds)
	token := strings.Repeat("a1", 32)

	code, env := call(t, r, "create_admin_session", gin.H{"user_email": "coord@mathcourse.edu", "token": token})
	if code != http.StatusCreated {
		t.Fatalf("create: status %d error %+v", code, env.Error)
	}
	var created model.CreateAdminSessionResponse
	if err := json.Unmarshal(env.Data, &created); err != nil || created.SessionID == uuid.Nil {
		t.Fatalf("create: bad payload %s", env.Data)
	}

	code, env = call(t, r, "validate_admin_session", gin.H{"token": token})
	var infos []model.SessionInfo
	if err := json.Unmarshal(env.Data, &infos); err != nil {
		t.Fatalf("validate: decode %v", err)
	}
	if code != http.StatusOK || len(infos) != 1 || infos[0].Email != "coord@mathcourse.edu" {
		t.Fatalf("validate: status %d rows %+v", code, infos)
	}

	for i := 0; i < 2; i++ {
		code, env = call(t, r, "destroy_admin_session", gin.H{"token": token})
		if code != http.StatusOK || strings.TrimSpace(string(env.Data)) != `{"success":true}` {
			t.Fatalf("destroy #%d: status %d data %s", i+1, code, env.Data)
		}
	}

	code, env = call(t, r, "validate_admin_session", gin.H{"token": token})
	if code != http.StatusOK || strings.TrimSpace(string(env.Data)) != "[]" {
		t.Fatalf("validate after destroy: status %d data %s", code, env.Data)
	}
}

func TestCreateAdminSessionRejectsWeakToken(t *testing.T) {
	creds := newFakeCredentials()
	r := newRPCRouter(creds)

	code, env := call(t, r, "create_admin_session", gin.H{"user_email": "coord@mathcourse.edu", "token": "short"})
	if code != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Fatalf("status %d error %+v", code, env.Error)
	}
	if _, ok := env.Error.Fields["token"]; !ok {
		t.Fatalf("expected token field error, got %v", env.Error.Fields)
	}
	if len(creds.sessions) != 0 {
		t.Fatal("no session may be created for a weak token")
	}
}

func TestCreateAdminSessionUnknownEmail(t *testing.T) {
	r := newRPCRouter(newFakeCredentials())

	code, env := call(t, r, "create_admin_session", gin.H{"user_email": "ghost@mathcourse.edu", "token": strings.Repeat("b2", 32)})
	if code != http.StatusNotFound || env.Error.Code != response.ErrNotFound {
		t.Fatalf("status %d error %+v", code, env.Error)
	}
}

func TestValidateAdminSessionGarbageToken(t *testing.T) {
	r := newRPCRouter(newFakeCredentials())

	for _, token := range []string{"", "not-a-token", strings.Repeat("f", 64)} {
		code, env := call(t, r, "validate_admin_session", gin.H{"token": token})
		if code != http.StatusOK || strings.TrimSpace(string(env.Data)) != "[]" {
			t.Fatalf("token %q: status %d data %s", token, code, env.Data)
		}
	}
}

func TestDestroyAdminSessionUnavailable(t *testing.T) {
	creds := newFakeCredentials()
	creds.err = errors.New("database down")
	r := newRPCRouter(creds)

	code, env := call(t, r, "destroy_admin_session", gin.H{"token": "whatever"})
	if code != http.StatusServiceUnavailable || env.Error.Code != response.ErrStoreUnavailable {
		t.Fatalf("status %d error %+v", code, env.Error)
	}
}
