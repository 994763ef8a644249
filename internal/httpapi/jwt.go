package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("httpapi: missing authentication token")
	ErrInvalidToken = errors.New("httpapi: invalid token")
)

// Claims is the JWT payload the query endpoint trusts for the caller's
// identity; only Subject is consulted today, but Roles is kept for
// future authorization checks.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTValidator validates HMAC-signed (HS256/HS384/HS512) bearer tokens.
type JWTValidator struct {
	secretKey []byte
	issuer    string
}

// NewJWTValidator returns a validator checking signature and, if set,
// issuer.
func NewJWTValidator(secretKey, issuer string) *JWTValidator {
	return &JWTValidator{secretKey: []byte(secretKey), issuer: issuer}
}

// ValidateToken parses and validates an "Authorization: Bearer ..." header
// value, returning the claims on success.
func (v *JWTValidator) ValidateToken(authHeader string) (*Claims, error) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	return claims, nil
}

type contextKey string

const claimsContextKey contextKey = "httpapi.claims"

func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// ClaimsFromContext returns the authenticated caller's claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*Claims)
	return c, ok
}
