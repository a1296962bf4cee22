package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/logging"
)

var (
	admin    = domain.Caller{UserID: 1, Role: domain.RoleAdmin}
	listener = domain.Caller{UserID: 2, Role: domain.RoleUser}
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		caller domain.Caller
		want   error
	}{
		{"admin", admin, nil},
		{"user", listener, domain.ErrForbidden},
		{"anonymous", domain.Caller{}, domain.ErrUnauthorized},
		{"unknown role", domain.Caller{UserID: 3, Role: "owner"}, domain.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireRole(tt.caller, domain.RoleAdmin)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			// Forbidden is a refinement of Unauthorized.
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestRequireSelfOrRole(t *testing.T) {
	assert.NoError(t, RequireSelfOrRole(listener, 2, domain.RoleAdmin))
	assert.NoError(t, RequireSelfOrRole(admin, 2, domain.RoleAdmin))
	assert.ErrorIs(t, RequireSelfOrRole(listener, 5, domain.RoleAdmin), domain.ErrForbidden)
	assert.ErrorIs(t, RequireSelfOrRole(domain.Caller{}, 5, domain.RoleAdmin), domain.ErrUnauthorized)
}

func TestCallerContext(t *testing.T) {
	assert.False(t, CallerFrom(context.Background()).Authenticated())
	ctx := WithCaller(context.Background(), listener)
	assert.Equal(t, listener, CallerFrom(ctx))
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "planetq-ledger", time.Hour)

	raw, err := tm.Generate(admin)
	require.NoError(t, err)

	got, err := tm.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, admin, got)
}

func TestTokenRejections(t *testing.T) {
	tm := NewTokenManager("secret", "planetq-ledger", time.Hour)
	raw, err := tm.Generate(listener)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other", "planetq-ledger", time.Hour)
		_, err := other.Parse(raw)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenManager("secret", "someone-else", time.Hour)
		_, err := other.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", "planetq-ledger", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("anonymous cannot be issued", func(t *testing.T) {
		_, err := tm.Generate(domain.Caller{})
		assert.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", "planetq-ledger", time.Hour)
	var seen domain.Caller
	h := Middleware(tm, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	raw, err := tm.Generate(listener)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCaller domain.Caller
	}{
		{"no header", "", http.StatusNoContent, domain.Caller{}},
		{"valid", "Bearer " + raw, http.StatusNoContent, listener},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, domain.Caller{}},
		{"bad token", "Bearer abc", http.StatusUnauthorized, domain.Caller{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Caller{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCaller, seen)
		})
	}
}

func TestErrInvalidTokenIsUnauthorized(t *testing.T) {
	assert.True(t, errors.Is(ErrInvalidToken, domain.ErrUnauthorized))
}
