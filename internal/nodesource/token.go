package nodesource

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// extractToken pulls the bearer token out of a login response body. Most
// Google-Reader-compatible providers return it as a single bare line;
// some wrap it in "Auth=<token>".
func extractToken(body []byte) string {
	s := strings.TrimSpace(string(body))
	if idx := strings.Index(s, "Auth="); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("Auth="):])
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[:nl]
	}
	return s
}

// tokenExpiry inspects the token's exp claim without verifying its
// signature — the client has no copy of the provider's signing key, only
// an opaque credential to forward (golang-jwt/jwt/v5). A token that
// isn't a JWT, or carries no exp claim, never expires here; the 401
// signal is still the authoritative invalidation path.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
