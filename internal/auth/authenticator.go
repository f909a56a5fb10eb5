package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/model"
)

const (
	// DefaultSessionTTL is how long an issued session stays valid.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultMaxAttempts is the number of consecutive failed logins tolerated
	// before further attempts are refused locally.
	DefaultMaxAttempts = 5

	minEmailLength = 5
)

// Authenticator turns credentials into sessions and cached tokens back into
// identities for one client profile. Construct one per process and pass it
// to whatever needs authentication state.
//
// The failed-attempt counter lives only in memory: it deters repeated typos
// and is not a security control. The credential store enforces its own limits.
type Authenticator struct {
	store CredentialStore
	cache SessionCache
	log   zerolog.Logger

	now         func() time.Time
	ttl         time.Duration
	maxAttempts int
	newToken    TokenSource

	mu       sync.Mutex
	failures int
	// seq increases on every login and logout. A validation that started
	// under an older seq must not write its result.
	seq   uint64
	token string
	user  *model.AdminUser
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithSessionTTL overrides the 24h session lifetime reported to callers.
func WithSessionTTL(ttl time.Duration) Option {
	return func(a *Authenticator) { a.ttl = ttl }
}

// WithMaxAttempts overrides the local failed-attempt threshold.
func WithMaxAttempts(n int) Option {
	return func(a *Authenticator) { a.maxAttempts = n }
}

// WithTokenSource overrides session token generation.
func WithTokenSource(src TokenSource) Option {
	return func(a *Authenticator) { a.newToken = src }
}

// New creates an Authenticator backed by store and cache.
func New(store CredentialStore, cache SessionCache, log zerolog.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		store:       store,
		cache:       cache,
		log:         log.With().Str("component", "authenticator").Logger(),
		now:         time.Now,
		ttl:         DefaultSessionTTL,
		maxAttempts: DefaultMaxAttempts,
		newToken:    NewToken,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login verifies email and password and issues a new session.
// Input is checked before the rate limit, and neither check contacts the store.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if err := checkCredentialsInput(email, password); err != nil {
		return nil, err
	}

	a.mu.Lock()
	limited := a.failures >= a.maxAttempts
	a.mu.Unlock()
	if limited {
		return nil, ErrRateLimited
	}

	log := a.log.With().Str("email", email).Logger()

	admin, err := a.store.LookupAdminByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		a.recordFailure()
		log.Info().Msg("Login rejected")
		return nil, ErrInvalidCredentials
	case errors.Is(err, ErrThrottled):
		log.Warn().Msg("Login throttled by credential store")
		return nil, ErrRateLimited
	case err != nil:
		log.Error().Err(err).Msg("Admin lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := CheckPassword(admin.PasswordHash, password); err != nil {
		a.recordFailure()
		log.Info().Msg("Login rejected")
		return nil, ErrInvalidCredentials
	}

	token, err := a.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	if _, err := a.store.CreateSession(ctx, admin.Email, token); err != nil {
		if errors.Is(err, ErrThrottled) {
			return nil, ErrRateLimited
		}
		log.Error().Err(err).Msg("Session creation failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	session := &model.Session{
		Token:     token,
		AdminID:   admin.ID,
		Email:     admin.Email,
		FullName:  admin.FullName,
		ExpiresAt: a.now().Add(a.ttl),
	}
	user := admin.View()

	a.mu.Lock()
	a.failures = 0
	a.seq++
	a.token = token
	a.user = user
	err = a.persistLocked(token, user)
	a.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Msg("Session cache write failed, session will not survive restart")
	}

	log.Info().
		Str("session", Fingerprint(token)).
		Time("expires_at", session.ExpiresAt).
		Msg("Admin logged in")

	return session, nil
}

// ValidateSession resolves a token to its identity. It has no side effects
// beyond a read on the store; purging the cache is Restore's job.
func (a *Authenticator) ValidateSession(ctx context.Context, token string) (*model.AdminUser, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	info, err := a.store.ValidateSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if info == nil || (!info.ExpiresAt.IsZero() && info.Expired(a.now())) {
		return nil, ErrInvalidSession
	}

	return info.User(), nil
}

// Restore re-establishes the session from the cache, typically at startup.
// An invalid session purges the cache; an unreachable store leaves it intact
// so the caller can retry.
func (a *Authenticator) Restore(ctx context.Context) (*model.AdminUser, error) {
	a.mu.Lock()
	seq := a.seq
	token, cached := a.token, a.user
	if token == "" {
		token, cached = a.loadCachedLocked()
	}
	a.mu.Unlock()

	if token == "" {
		return nil, ErrInvalidSession
	}

	user, err := a.ValidateSession(ctx, token)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seq != seq {
		// Superseded by a login or logout while the store was answering.
		if a.token != "" && a.user != nil {
			u := *a.user
			return &u, nil
		}
		return nil, ErrInvalidSession
	}

	switch {
	case err == nil:
		if cached != nil && cached.ID == user.ID {
			user.CreatedAt, user.UpdatedAt = cached.CreatedAt, cached.UpdatedAt
		}
		a.token = token
		a.user = user
		if perr := a.persistLocked(token, user); perr != nil {
			a.log.Warn().Err(perr).Msg("Session cache refresh failed")
		}
		u := *user
		return &u, nil

	case errors.Is(err, ErrInvalidSession):
		a.seq++
		a.token = ""
		a.user = nil
		if perr := a.purgeLocked(); perr != nil {
			a.log.Warn().Err(perr).Msg("Session cache purge failed")
		}
		a.log.Info().Str("session", Fingerprint(token)).Msg("Cached session no longer valid")
		return nil, ErrInvalidSession

	default:
		a.log.Warn().Err(err).Msg("Session validation unavailable, keeping cached session")
		return nil, err
	}
}

// Logout revokes the session remotely on a best-effort basis and always
// clears local state. An empty token means the active one.
func (a *Authenticator) Logout(ctx context.Context, token string) {
	a.mu.Lock()
	if token == "" {
		token = a.token
	}
	if token == "" {
		if cached, ok, err := a.cache.Get(CacheKeyToken); err == nil && ok {
			token = cached
		}
	}
	a.seq++
	a.token = ""
	a.user = nil
	if err := a.purgeLocked(); err != nil {
		a.log.Warn().Err(err).Msg("Session cache purge failed")
	}
	a.mu.Unlock()

	if token == "" {
		return
	}

	if err := a.store.DestroySession(ctx, token); err != nil {
		a.log.Warn().Err(err).Str("session", Fingerprint(token)).Msg("Remote session revocation failed")
		return
	}
	a.log.Info().Str("session", Fingerprint(token)).Msg("Admin logged out")
}

// Current returns the authenticated identity held in memory, if any.
func (a *Authenticator) Current() (*model.AdminUser, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil || a.token == "" {
		return nil, false
	}
	u := *a.user
	return &u, true
}

// Token returns the active session token, or "" when logged out.
func (a *Authenticator) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// FailedAttempts returns the consecutive failed logins since the last success.
func (a *Authenticator) FailedAttempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures
}

func (a *Authenticator) recordFailure() {
	a.mu.Lock()
	a.failures++
	a.mu.Unlock()
}

func checkCredentialsInput(email, password string) error {
	if email == "" || password == "" {
		return ErrInvalidInput
	}
	if !strings.Contains(email, "@") || len(email) < minEmailLength {
		return ErrInvalidInput
	}
	return nil
}

func (a *Authenticator) persistLocked(token string, user *model.AdminUser) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode admin user: %w", err)
	}

	if b, ok := a.cache.(BatchCache); ok {
		return b.Update(map[string]string{CacheKeyToken: token, CacheKeyUser: string(raw)}, nil)
	}

	if err := a.cache.Set(CacheKeyUser, string(raw)); err != nil {
		_ = a.purgeLocked()
		return err
	}
	if err := a.cache.Set(CacheKeyToken, token); err != nil {
		_ = a.purgeLocked()
		return err
	}
	return nil
}

func (a *Authenticator) purgeLocked() error {
	if b, ok := a.cache.(BatchCache); ok {
		return b.Update(nil, []string{CacheKeyToken, CacheKeyUser})
	}
	// Token goes first: an identity without a token is discarded on load.
	return errors.Join(a.cache.Remove(CacheKeyToken), a.cache.Remove(CacheKeyUser))
}

// loadCachedLocked reads both keys. Anything other than a complete, decodable
// pair is purged and reported as empty.
func (a *Authenticator) loadCachedLocked() (string, *model.AdminUser) {
	token, hasToken, err := a.cache.Get(CacheKeyToken)
	if err != nil {
		a.log.Warn().Err(err).Msg("Session cache read failed")
		return "", nil
	}
	raw, hasUser, err := a.cache.Get(CacheKeyUser)
	if err != nil {
		a.log.Warn().Err(err).Msg("Session cache read failed")
		return "", nil
	}
	if !hasToken && !hasUser {
		return "", nil
	}

	var user model.AdminUser
	if !hasToken || !hasUser || token == "" || json.Unmarshal([]byte(raw), &user) != nil {
		a.log.Warn().Msg("Discarding incomplete session cache")
		if err := a.purgeLocked(); err != nil {
			a.log.Warn().Err(err).Msg("Session cache purge failed")
		}
		return "", nil
	}
	return token, &user
}
