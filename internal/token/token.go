// Package token issues and verifies the HMAC-signed share/access
// tokens described in spec §4.6: a bearer carrying a session id and
// expiry, checked by signature, expiry, and issuer before a bridge
// admits a read-only viewer.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the fixed issuer claim every token must carry and match.
const Issuer = "sesh"

// ErrInvalid covers every verification failure: bad signature,
// expired token, wrong issuer, or malformed claims. Callers don't
// need to distinguish these; the bridge just rejects the connection.
var ErrInvalid = errors.New("token: invalid or expired")

// claims is the JWT payload: session id plus the registered fields
// golang-jwt already validates (exp, iat, iss).
type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Signer mints and verifies tokens under a single process-wide HMAC
// secret.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from a secret. An empty secret is
// rejected: an unsigned token would be indistinguishable from a
// forged one.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	return &Signer{secret: secret}, nil
}

// Issue mints a token for sessionID valid for ttl from now.
func (s *Signer) Issue(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// Verify checks signature, expiry, and issuer, returning the session
// id the token carries.
func (s *Signer) Verify(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.SessionID == "" {
		return "", ErrInvalid
	}
	return c.SessionID, nil
}
