// Package auth issues and checks the short-lived tokens the document server
// presents when it calls back into the service.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Purposes scope a token to one kind of callback.
const (
	PurposeDownload = "download"
	PurposeFill     = "fill"
	PurposeCallback = "callback"
)

// Claims are the claims of an internal token. Subject names the template or
// job the token grants access to.
type Claims struct {
	Purpose string `json:"purpose"`
	User    string `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies internal HS256 tokens.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens creates a Tokens with secret. An empty secret is replaced by a
// random one, which invalidates tokens across restarts.
func NewTokens(secret string) (*Tokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}
	return &Tokens{secret: key, now: time.Now}, nil
}

// Issue returns a token for subject valid for ttl.
func (t *Tokens) Issue(purpose, subject, user string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Purpose: purpose,
		User:    user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks tokenStr and returns its claims. The token must carry
// purpose and name subject.
func (t *Tokens) Verify(tokenStr, purpose, subject string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose || claims.Subject != subject {
		return nil, fmt.Errorf("%w: wrong scope", ErrInvalidToken)
	}
	return claims, nil
}
