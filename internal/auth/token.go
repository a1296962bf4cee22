package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/planetqradio/creditledger/internal/domain"
)

// ErrInvalidToken is returned by Parse for any token that cannot be trusted.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the HS256 session tokens that carry
// {userId, role}.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate issues a signed token for c.
func (t *TokenManager) Generate(c domain.Caller) (string, error) {
	if !c.Authenticated() {
		return "", errors.New("cannot issue a token for an anonymous caller")
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(c.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	return token.SignedString(t.secret)
}

// Parse verifies raw and returns the caller it names.
func (t *TokenManager) Parse(raw string) (domain.Caller, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(cl.Subject, 10, 64)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, cl.Subject)
	}
	c := domain.Caller{UserID: id, Role: cl.Role}
	if !c.Authenticated() {
		return domain.Caller{}, ErrInvalidToken
	}
	return c, nil
}
