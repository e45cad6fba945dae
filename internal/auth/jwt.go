// Package auth provides password hashing, JWT session tokens and the HTTP
// middleware that turns a token back into an account id.
//
// LOGIN FLOW:
//  1. POST /api/login with email + password
//  2. PasswordService.Verify checks the bcrypt hash
//  3. TokenService.Generate signs an HS256 JWT whose subject is the account id
//  4. The token is returned in the body and set as the HttpOnly "token" cookie
//  5. RequireAuth accepts either "Authorization: Bearer <jwt>" or the cookie
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/coursemarket/internal/model"
)

const issuer = "coursemarket"

// TokenService signs and verifies access tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims carries the role next to the standard fields so clients can pick
// a dashboard without another request. Authorization never trusts it: the
// role is always re-read from the account.
type claims struct {
	Role model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Claims is what a valid token tells us about its holder.
type Claims struct {
	AccountID string
	Role      model.Role
	ExpiresAt time.Time
}

// Generate signs a token for the account valid for the configured TTL.
func (s *TokenService) Generate(accountID string, role model.Role) (string, error) {
	return s.GenerateWithDuration(accountID, role, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(accountID string, role model.Role, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string.
//
// Only HS256 is accepted (WithValidMethods), which rules out the "alg: none"
// confusion attack. Issuer and expiry are mandatory.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	out := &Claims{AccountID: c.Subject, Role: c.Role}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
