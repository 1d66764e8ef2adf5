// Package auth verifies bearer tokens and carries the resulting principal
// through the request context.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pkordes/busline/backend/internal/clock"
	"github.com/pkordes/busline/backend/internal/domain"
)

// Claims are the JWT claims issued by the user service.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	clock  clock.Clock
}

// NewAuthenticator returns an Authenticator for secret. Token expiry is
// checked against clk.
func NewAuthenticator(secret string, clk clock.Clock) *Authenticator {
	return &Authenticator{secret: []byte(secret), clock: clk}
}

// Verify parses token and returns the principal it names.
// Every failure wraps domain.ErrUnauthorized.
func (a *Authenticator) Verify(token string) (domain.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("auth.Verify: %w: %w", domain.ErrUnauthorized, err)
	}
	if claims.UserID == "" {
		return domain.Principal{}, fmt.Errorf("auth.Verify: %w: missing userId claim", domain.ErrUnauthorized)
	}
	return domain.Principal{ID: claims.UserID, Role: claims.Role, Email: claims.Email}, nil
}

// Issue signs a token for p valid for ttl. It is used by tests and local
// tooling; production tokens come from the user service.
func (a *Authenticator) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	now := a.clock.Now()
	claims := Claims{
		UserID: p.ID,
		Role:   p.Role,
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth.Issue: %w", err)
	}
	return signed, nil
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by Middleware.
func FromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok && p.ID != ""
}

var errMissingToken = errors.New("missing bearer token")

// Middleware rejects requests without a valid bearer token with 401 and
// stores the principal in the request context otherwise.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, errMissingToken)
				return
			}
			p, err := a.Verify(token)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// unauthorized writes the same error envelope the handlers use.
func unauthorized(w http.ResponseWriter, err error) {
	msg := "invalid or expired token"
	if errors.Is(err, errMissingToken) {
		msg = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="reservations"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": msg},
	})
}
