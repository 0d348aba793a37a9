// Package auth verifies bearer tokens issued to testers and back-office tooling.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds signer verification parameters.
type Config struct {
	Secret string
	Issuer string
}

// Claims is the verified identity of a caller.
type Claims struct {
	Subject   string
	StaffID   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps parsing and validation errors.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// tokenClaims is the wire shape of the JWT payload.
type tokenClaims struct {
	jwt.RegisteredClaims
	StaffID string    `json:"staff_id"`
	Scopes  scopeList `json:"scopes"`
}

// scopeList accepts both a JSON array and the OAuth space separated string.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*s = strings.Fields(joined)
	return nil
}

// Parse verifies an HS256 token and returns its claims. Tokens must carry sub and exp.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var tc tokenClaims
	if _, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}

	scopes := make(map[string]struct{}, len(tc.Scopes))
	for _, scope := range tc.Scopes {
		if scope != "" {
			scopes[scope] = struct{}{}
		}
	}
	return &Claims{
		Subject:   tc.Subject,
		StaffID:   tc.StaffID,
		Scopes:    scopes,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// HasScope reports whether the claim set includes the provided scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

type claimsKey struct{}

// WithClaims stores the claims in the request context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
