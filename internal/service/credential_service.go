package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/cache"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/repository"
)

type adminFinder interface {
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error)
}

type sessionStore interface {
	Create(ctx context.Context, s *model.SessionRecord) error
	GetActive(ctx context.Context, tokenHash string, now time.Time) (*model.SessionInfo, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

type sessionCache interface {
	Get(ctx context.Context, tokenHash string) (*model.SessionInfo, error)
	Set(ctx context.Context, tokenHash string, info *model.SessionInfo, ttl time.Duration) error
	Delete(ctx context.Context, tokenHash string) error
}

type attemptLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, tokenHash string, ev model.SessionEvent) error
}

type auditQueue interface {
	Enqueue(ctx context.Context, ev *model.AuthEvent) error
}

// CredentialDeps groups the storage collaborators of CredentialService.
type CredentialDeps struct {
	Admins   adminFinder
	Sessions sessionStore
	Cache    sessionCache
	Limiter  attemptLimiter
	Events   eventPublisher
	Audit    auditQueue
}

// CredentialService is the service of record for admin identities and
// sessions. It implements auth.CredentialStore and backs the RPC surface.
type CredentialService struct {
	deps CredentialDeps

	sessionTTL      time.Duration
	loginRateLimit  int
	loginRateWindow time.Duration

	now func() time.Time
	log zerolog.Logger
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(deps CredentialDeps, cfg *config.Config, log zerolog.Logger) *CredentialService {
	return &CredentialService{
		deps:            deps,
		sessionTTL:      cfg.SessionTTL,
		loginRateLimit:  cfg.LoginRateLimit,
		loginRateWindow: cfg.LoginRateWindow,
		now:             time.Now,
		log:             log.With().Str("component", "credential_service").Logger(),
	}
}

// WithClock overrides time.Now. Intended for tests.
func (s *CredentialService) WithClock(now func() time.Time) *CredentialService {
	s.now = now
	return s
}

// CheckLoginRate applies the per-email and per-source sliding windows.
// A Redis outage fails open: the lookup proceeds and the error is logged.
func (s *CredentialService) CheckLoginRate(ctx context.Context, email string) error {
	now := s.now()
	ip := SourceIPFromContext(ctx)

	keys := []string{config.CacheKey.LoginAttemptsEmailKey(email)}
	if ip != "" {
		keys = append(keys, config.CacheKey.LoginAttemptsIPKey(ip))
	}

	for _, key := range keys {
		ok, err := s.deps.Limiter.Allow(ctx, key, s.loginRateLimit, s.loginRateWindow, now)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Login rate check unavailable")
			continue
		}
		if !ok {
			s.audit(ctx, model.AuthEventLookupThrottled, email, nil)
			s.log.Warn().Str("email", email).Str("source_ip", ip).Msg("Login lookup throttled")
			return auth.ErrThrottled
		}
	}
	return nil
}

// LookupAdminByEmail returns auth.ErrNotFound for an unknown email.
func (s *CredentialService) LookupAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	admin, err := s.deps.Admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit(ctx, model.AuthEventLookupUnknown, email, nil)
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
	return admin, nil
}

// CreateSession persists a session for email keyed by the token's hash.
// Callers must have verified the password already.
func (s *CredentialService) CreateSession(ctx context.Context, email, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errors.New("empty session token")
	}

	admin, err := s.deps.Admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, auth.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup admin: %w", err)
	}

	now := s.now()
	rec := &model.SessionRecord{
		TokenHash: auth.HashToken(token),
		AdminID:   admin.ID,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.deps.Sessions.Create(ctx, rec); err != nil {
		return uuid.Nil, err
	}

	info := &model.SessionInfo{
		AdminID:   admin.ID,
		Email:     admin.Email,
		FullName:  admin.FullName,
		ExpiresAt: rec.ExpiresAt,
	}
	if err := s.deps.Cache.Set(ctx, rec.TokenHash, info, s.sessionTTL); err != nil {
		s.log.Warn().Err(err).Msg("Session cache write failed")
	}

	s.audit(ctx, model.AuthEventSessionIssued, admin.Email, &admin.ID)
	s.log.Info().
		Str("admin_id", admin.ID.String()).
		Str("session", auth.Fingerprint(token)).
		Time("expires_at", rec.ExpiresAt).
		Msg("Session issued")

	return rec.ID, nil
}

// ValidateSession returns the live session for token or auth.ErrNotFound.
func (s *CredentialService) ValidateSession(ctx context.Context, token string) (*model.SessionInfo, error) {
	if token == "" {
		return nil, auth.ErrNotFound
	}

	hash := auth.HashToken(token)
	now := s.now()

	cached, err := s.deps.Cache.Get(ctx, hash)
	switch {
	case err == nil && !cached.Expired(now):
		return cached, nil
	case err == nil:
		_ = s.deps.Cache.Delete(ctx, hash)
		return nil, auth.ErrNotFound
	case !errors.Is(err, cache.ErrMiss):
		s.log.Warn().Err(err).Msg("Session cache read failed, falling back to database")
	}

	info, err := s.deps.Sessions.GetActive(ctx, hash, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("validate session: %w", err)
	}

	if err := s.deps.Cache.Set(ctx, hash, info, info.ExpiresAt.Sub(now)); err != nil {
		s.log.Warn().Err(err).Msg("Session cache write failed")
	}
	return info, nil
}

// DestroySession revokes a session. Unknown or already destroyed tokens are
// not an error.
func (s *CredentialService) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := auth.HashToken(token)

	// Evict first so a database failure cannot leave a revoked session cached.
	if err := s.deps.Cache.Delete(ctx, hash); err != nil {
		s.log.Warn().Err(err).Msg("Session cache eviction failed")
	}

	existed, err := s.deps.Sessions.DeleteByTokenHash(ctx, hash)
	if err != nil {
		return err
	}
	// A validation between the first eviction and the delete may have
	// re-cached the row.
	if err := s.deps.Cache.Delete(ctx, hash); err != nil {
		s.log.Warn().Err(err).Msg("Session cache eviction failed")
	}
	if !existed {
		return nil
	}

	s.publish(ctx, hash, model.SessionEventRevoked)
	s.audit(ctx, model.AuthEventSessionDestroyed, "", nil)
	s.log.Info().Str("session", auth.Fingerprint(token)).Msg("Session destroyed")
	return nil
}

// SweepExpired deletes expired sessions and notifies their holders.
func (s *CredentialService) SweepExpired(ctx context.Context) (int, error) {
	hashes, err := s.deps.Sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, hash := range hashes {
		if err := s.deps.Cache.Delete(ctx, hash); err != nil {
			s.log.Warn().Err(err).Msg("Session cache eviction failed")
		}
		s.publish(ctx, hash, model.SessionEventExpired)
		s.audit(ctx, model.AuthEventSessionExpired, "", nil)
	}
	return len(hashes), nil
}

// AdminProfile loads the current identity of a session owner.
func (s *CredentialService) AdminProfile(ctx context.Context, adminID uuid.UUID) (*model.AdminUser, error) {
	admin, err := s.deps.Admins.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("load admin profile: %w", err)
	}
	return admin.View(), nil
}

func (s *CredentialService) publish(ctx context.Context, hash string, kind model.SessionEventKind) {
	ev := model.SessionEvent{Kind: kind, At: s.now()}
	if err := s.deps.Events.Publish(ctx, hash, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Session event publish failed")
	}
}

func (s *CredentialService) audit(ctx context.Context, kind model.AuthEventKind, email string, adminID *uuid.UUID) {
	ev := &model.AuthEvent{
		Kind:      kind,
		Email:     email,
		SourceIP:  SourceIPFromContext(ctx),
		AdminID:   adminID,
		CreatedAt: s.now(),
	}
	if err := s.deps.Audit.Enqueue(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Audit enqueue failed")
	}
}

var _ auth.CredentialStore = (*CredentialService)(nil)
