// Package auth holds the server's session plumbing: the signed session
// cookie, the sealing of stored GitHub tokens, the middleware that turns a
// cookie into a profile id, and the optional GitHub OAuth sign-in.
//
// SESSION FLOW OVERVIEW:
//  1. Visitor opens /login and pastes a personal access token (or signs in via OAuth)
//  2. The server validates the token against GitHub and stores it, sealed, under
//     a fresh profile id (an xid)
//  3. The server issues a JWT whose subject is that profile id and puts it in an
//     HttpOnly cookie
//  4. On every request, middleware validates the JWT and sets the profile id in
//     the request context; the GitHub token itself never leaves the server
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"<profile id>","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const issuer = "ghdash"

// DefaultSessionLifetime is how long a session cookie stays valid.
const DefaultSessionLifetime = 7 * 24 * time.Hour

// TokenService signs and validates session JWTs.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	clock    clockwork.Clock
}

// NewTokenService creates a TokenService with the given secret.
// The secret must be at least 16 characters; lifetime <= 0 means
// DefaultSessionLifetime.
func NewTokenService(secret string, lifetime time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		clock:    clockwork.NewRealClock(),
	}, nil
}

// WithClock replaces the clock used for issuing and expiry checks.
func (s *TokenService) WithClock(clock clockwork.Clock) *TokenService {
	s.clock = clock
	return s
}

// Lifetime returns how long issued tokens are valid.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Generate issues a session token for profile with the configured lifetime.
func (s *TokenService) Generate(profile string) (string, error) {
	return s.GenerateWithDuration(profile, s.lifetime)
}

// GenerateWithDuration issues a session token valid for d.
// Negative durations produce already-expired tokens (used in tests).
func (s *TokenService) GenerateWithDuration(profile string, d time.Duration) (string, error) {
	now := s.clock.Now()

	c := jwt.RegisteredClaims{
		Subject:   profile,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token and returns the profile id
// stored in its subject.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer is "ghdash"
//   - Algorithm is HS256 (prevents "alg":"none" and algorithm confusion)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	c := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	if !token.Valid || c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
