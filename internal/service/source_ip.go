package service

import "context"

type sourceIPKey struct{}

// ContextWithSourceIP tags ctx with the caller's address for rate limiting
// and audit records.
func ContextWithSourceIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, sourceIPKey{}, ip)
}

// SourceIPFromContext returns the address set by ContextWithSourceIP, or "".
func SourceIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(sourceIPKey{}).(string)
	return ip
}
