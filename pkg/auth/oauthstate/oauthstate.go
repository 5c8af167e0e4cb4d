// Package oauthstate issues and verifies the state parameter carried
// through OAuth authorization-code redirects.
//
// A state is an HS256-signed JWT naming the integration that started the
// flow. It expires after a short TTL so a leaked callback URL cannot be
// replayed later.
package oauthstate

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL bounds how long a user has to finish consent.
const DefaultTTL = 10 * time.Minute

// ErrInvalidState is returned for tampered, expired or foreign states.
var ErrInvalidState = errors.New("invalid OAuth state")

const issuer = "crowdmcp"

type claims struct {
	Integration string `json:"integration"`
	jwtlib.RegisteredClaims
}

// Signer issues and verifies state values.
type Signer struct {
	key     []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// New creates a Signer. An empty secret generates a random per-process key,
// which invalidates outstanding states on restart.
func New(secret string, ttl time.Duration) (*Signer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating state key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{key: key, ttl: ttl, nowFunc: time.Now}, nil
}

// Issue returns a signed state for integration.
func (s *Signer) Issue(integration string) (string, error) {
	now := s.nowFunc()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims{
		Integration: integration,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return tok.SignedString(s.key)
}

// Verify checks state and returns the integration it was issued for.
func (s *Signer) Verify(state string) (string, error) {
	var c claims
	_, err := jwtlib.ParseWithClaims(state, &c, func(t *jwtlib.Token) (any, error) {
		return s.key, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.nowFunc),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if c.Integration == "" {
		return "", ErrInvalidState
	}
	return c.Integration, nil
}
