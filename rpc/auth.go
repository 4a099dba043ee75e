package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const adminScope = "matrix.admin"

// Authenticator validates HS256 bearer tokens for the owner-only methods.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
}

// NewAuthenticator builds an authenticator from the shared HMAC secret.
func NewAuthenticator(secret, issuer, audience string) *Authenticator {
	return &Authenticator{
		secret:   []byte(strings.TrimSpace(secret)),
		issuer:   issuer,
		audience: audience,
		skew:     2 * time.Minute,
	}
}

// Authorize checks the request's bearer token carries the admin scope.
func (a *Authenticator) Authorize(r *http.Request) error {
	if a == nil || len(a.secret) == 0 {
		return errors.New("admin authentication not configured")
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return errors.New("missing bearer token")
	}
	opts := []jwt.ParserOption{jwt.WithLeeway(a.skew)}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("claims not map")
	}
	if !hasScope(claims, adminScope) {
		return errors.New("insufficient scope")
	}
	return nil
}

func extractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasScope(claims jwt.MapClaims, required string) bool {
	raw, ok := claims["scope"]
	if !ok {
		return false
	}
	switch value := raw.(type) {
	case string:
		for _, scope := range strings.Fields(value) {
			if scope == required {
				return true
			}
		}
	case []interface{}:
		for _, entry := range value {
			if scope, ok := entry.(string); ok && scope == required {
				return true
			}
		}
	}
	return false
}

// SignAdminToken issues a short-lived admin token; used by operator tooling
// and tests.
func SignAdminToken(secret, issuer, audience string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"scope": adminScope,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(strings.TrimSpace(secret)))
}
