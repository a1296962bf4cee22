// Package auth turns session tokens into a domain.Caller and checks the
// caller's capabilities. Every role check in the service goes through
// RequireRole.
package auth

import (
	"context"

	"github.com/planetqradio/creditledger/internal/domain"
)

type ctxKey struct{}

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or the unauthenticated zero value.
func CallerFrom(ctx context.Context) domain.Caller {
	c, _ := ctx.Value(ctxKey{}).(domain.Caller)
	return c
}

// RequireAuthenticated fails with ErrUnauthorized when c has no session.
func RequireAuthenticated(c domain.Caller) error {
	if !c.Authenticated() {
		return domain.ErrUnauthorized
	}
	return nil
}

// RequireRole fails with ErrUnauthorized for anonymous callers and with
// ErrForbidden when the session holds a different role.
func RequireRole(c domain.Caller, role domain.Role) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}
	if c.Role != role {
		return domain.ErrForbidden
	}
	return nil
}

// RequireSelfOrRole allows the user acting on their own data, or any caller
// holding role.
func RequireSelfOrRole(c domain.Caller, userID int64, role domain.Role) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}
	if c.UserID == userID || c.Role == role {
		return nil
	}
	return domain.ErrForbidden
}
