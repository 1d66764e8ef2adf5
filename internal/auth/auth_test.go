package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/busline/backend/internal/auth"
	"github.com/pkordes/busline/backend/internal/clock"
	"github.com/pkordes/busline/backend/internal/domain"
)

const secret = "test-secret"

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newAuth() (*auth.Authenticator, *clock.Fake) {
	clk := clock.NewFake(now)
	return auth.NewAuthenticator(secret, clk), clk
}

func TestVerify_RoundTrip(t *testing.T) {
	a, _ := newAuth()
	want := domain.Principal{ID: "u-1", Role: domain.RoleAdmin, Email: "u1@example.com"}

	token, err := a.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerify_Expired(t *testing.T) {
	a, clk := newAuth()
	token, err := a.Issue(domain.Principal{ID: "u-1"}, time.Minute)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerify_WrongSecret(t *testing.T) {
	a, _ := newAuth()
	other := auth.NewAuthenticator("other-secret", clock.NewFake(now))
	token, err := other.Issue(domain.Principal{ID: "u-1"}, time.Hour)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerify_MissingUserID(t *testing.T) {
	a, _ := newAuth()
	token, err := a.Issue(domain.Principal{}, time.Hour)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	a, _ := newAuth()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{UserID: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerify_Garbage(t *testing.T) {
	a, _ := newAuth()

	_, err := a.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestFromContext_Empty(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)
}

// ---- Middleware ------------------------------------------------------------

func protected(a *auth.Authenticator) http.Handler {
	return auth.Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(p.ID))
	}))
}

func TestMiddleware_ValidToken(t *testing.T) {
	a, _ := newAuth()
	token, err := a.Issue(domain.Principal{ID: "u-7"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(a).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-7", rec.Body.String())
}

func TestMiddleware_Rejects(t *testing.T) {
	a, _ := newAuth()

	cases := map[string]string{
		"no header":     "",
		"wrong scheme":  "Basic dXNlcjpwYXNz",
		"empty token":   "Bearer ",
		"invalid token": "Bearer abc.def.ghi",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			protected(a).ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unauthorized", body.Error.Code)
		})
	}
}
