package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLeeway = 30 * time.Second

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidRole  = errors.New("auth: invalid role")
)

// Claims is the HS256 token payload: a registered subject plus a role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token and returns the identity it carries.
// Tokens without an expiry are accepted.
func ParseToken(token string, secret []byte) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	if len(secret) == 0 {
		return Identity{}, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
	)
	var claims Claims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return Identity{}, fmt.Errorf("auth: %w", err)
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return Identity{}, ErrInvalidRole
	}
	return Identity{Subject: claims.Subject, Role: role}, nil
}

// IssueToken signs a token for id that expires after ttl.
func IssueToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	if ttl <= 0 {
		return "", errors.New("auth: token ttl must be positive")
	}
	role, ok := NormalizeRole(string(id.Role))
	if !ok {
		return "", ErrInvalidRole
	}
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
