package auth

import "errors"

// Errors returned by the Authenticator. Callers compare with errors.Is.
var (
	// ErrInvalidInput means the request was malformed and never reached the store.
	ErrInvalidInput = errors.New("invalid email or password format")
	// ErrRateLimited means too many failed attempts; the store was not contacted.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStoreUnavailable is a transient infrastructure failure; retry instead of re-prompting.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrInvalidSession means the token is absent, expired or revoked.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Errors a CredentialStore implementation uses to signal contract outcomes.
var (
	// ErrNotFound: no admin for the email, or no live session for the token.
	ErrNotFound = errors.New("no matching record")
	// ErrThrottled: the store refused the request under its own rate limit.
	ErrThrottled = errors.New("credential store throttled the request")
)
