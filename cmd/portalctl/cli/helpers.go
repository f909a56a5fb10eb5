package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/client"
	"github.com/stemsi/mathcourse-portal/internal/logger"
	"github.com/stemsi/mathcourse-portal/internal/sessioncache"
)

// session bundles what every command needs.
type session struct {
	client *client.Client
	auth   *auth.Authenticator
	cache  *sessioncache.File
	log    zerolog.Logger
}

func openSession() (*session, error) {
	baseURL := viper.GetString("base_url")
	if baseURL == "" {
		return nil, errors.New("base_url is not configured (set PORTAL_BASE_URL or portalctl.yaml)")
	}

	cachePath := viper.GetString("cache_file")
	if cachePath == "" {
		p, err := sessioncache.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve cache path: %w", err)
		}
		cachePath = p
	}

	log := logger.New(os.Stderr, viper.GetString("log_level"), "pretty")
	c := client.New(baseURL, viper.GetString("api_key"), client.WithTimeout(viper.GetDuration("timeout")))
	cache := sessioncache.NewFile(cachePath)

	return &session{
		client: c,
		auth:   auth.New(c, cache, log),
		cache:  cache,
		log:    log,
	}, nil
}

// describe turns authenticator errors into messages for the terminal.
func describe(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return "Enter a valid email address and a password."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, auth.ErrRateLimited):
		return "Too many failed attempts. Try again later."
	case errors.Is(err, auth.ErrStoreUnavailable):
		return "The portal is unreachable right now. Try again in a moment."
	case errors.Is(err, auth.ErrInvalidSession):
		return "Not logged in."
	default:
		return err.Error()
	}
}
