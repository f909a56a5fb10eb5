package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AdminSessionKey returns the cache key for a validated admin session, keyed by token hash
func (r *CacheKeyStruct) AdminSessionKey(tokenHash string) string {
	return fmt.Sprintf("admin_session:%s", tokenHash)
}

// AdminSessionEventsChannel returns the Redis PubSub channel carrying revocation/expiry events for a session
func (r *CacheKeyStruct) AdminSessionEventsChannel(tokenHash string) string {
	return fmt.Sprintf("admin_session:%s:events", tokenHash)
}

// LoginAttemptsEmailKey returns the sliding-window key for lookups against an email
func (r *CacheKeyStruct) LoginAttemptsEmailKey(email string) string {
	return fmt.Sprintf("login_attempts:email:%s", strings.ToLower(email))
}

// LoginAttemptsIPKey returns the sliding-window key for lookups from a source IP
func (r *CacheKeyStruct) LoginAttemptsIPKey(ip string) string {
	return fmt.Sprintf("login_attempts:ip:%s", ip)
}

var CacheKey = NewCacheKeyStruct()
