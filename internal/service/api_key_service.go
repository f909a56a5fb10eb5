package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/mathcourse-portal/internal/config"
)

// APIKeyRole is the privilege carried by an API key.
type APIKeyRole string

const (
	// RoleAnon may validate and destroy sessions.
	RoleAnon APIKeyRole = "anon"
	// RoleService may additionally read credential records and mint sessions.
	RoleService APIKeyRole = "service_role"
)

// ErrUnknownRole is returned for keys that carry an unrecognised role.
var ErrUnknownRole = errors.New("unknown api key role")

// APIKeyClaims extends JWT standard claims with the key's role.
type APIKeyClaims struct {
	jwt.RegisteredClaims
	Role APIKeyRole `json:"role"`
}

// APIKeyService issues and validates the JWT API keys sent in the apikey header.
type APIKeyService struct {
	secret []byte
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(cfg *config.Config) *APIKeyService {
	return &APIKeyService{secret: []byte(cfg.APIKeySecret)}
}

// Issue signs a key for role. A zero ttl yields a key without expiry.
func (s *APIKeyService) Issue(role APIKeyRole, ttl time.Duration) (string, error) {
	if !role.valid() {
		return "", ErrUnknownRole
	}

	now := time.Now()
	claims := APIKeyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.New().String(),
			Issuer:   "mathcourse-portal",
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role: role,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign api key: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies an API key.
func (s *APIKeyService) Validate(tokenStr string) (*APIKeyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &APIKeyClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse api key: %w", err)
	}

	claims, ok := token.Claims.(*APIKeyClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid api key claims")
	}
	if !claims.Role.valid() {
		return nil, ErrUnknownRole
	}
	return claims, nil
}

// Allows reports whether a key with role r may call an endpoint requiring need.
func (r APIKeyRole) Allows(need APIKeyRole) bool {
	if r == RoleService {
		return true
	}
	return r == need
}

func (r APIKeyRole) valid() bool {
	return r == RoleAnon || r == RoleService
}
