// Package auth verifies HS256 bearer tokens and enforces scope-based
// access on the control surface. Viewer scope covers read-only endpoints
// (status, telemetry); controller scope covers lifecycle commands.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes.
const (
	ScopeViewer     = "viewer"
	ScopeController = "controller"
)

// Claims are the token claims the daemon cares about.
type Claims struct {
	Subject string
	Scope   string
}

// HasScope reports whether the claims satisfy the required scope.
// Controller implies viewer.
func (c *Claims) HasScope(required string) bool {
	if c.Scope == required {
		return true
	}
	return required == ScopeViewer && c.Scope == ScopeController
}

// Verifier validates HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier. An empty secret is rejected; callers
// wanting no auth skip the middleware instead.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret must not be empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyToken parses and validates a token string.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{}
	if sub, ok := mc["sub"].(string); ok {
		claims.Subject = sub
	}
	if scope, ok := mc["scope"].(string); ok {
		claims.Scope = scope
	}
	return claims, nil
}

// IssueToken mints a short-lived token. Used by tests and provisioning
// tooling.
func (v *Verifier) IssueToken(subject, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	return token.SignedString(v.secret)
}

type contextKey struct{}

// FromContext returns the claims the middleware stored, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// Subject returns the authenticated subject or "anonymous".
func Subject(ctx context.Context) string {
	if c, ok := FromContext(ctx); ok && c.Subject != "" {
		return c.Subject
	}
	return "anonymous"
}

// Middleware enforces a bearer token with the required scope.
func (v *Verifier) Middleware(requiredScope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}
			claims, err := v.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}
			if !claims.HasScope(requiredScope) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient scope")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"result":"error","code":%q,"message":%q}`+"\n", code, message)
}
