// synthesize.go -- Unsigned three-segment tokens built from session data.
//
// Used only when the identity provider issued neither an access token nor an
// ID token. The result carries no signature; it exists so the backend's
// three-segment decode step has something structurally valid to read.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SyntheticTTL is the exp - iat window written into synthesized tokens.
const SyntheticTTL = time.Hour

// ErrNoPrincipal is returned by Synthesize when the session has no subject.
var ErrNoPrincipal = errors.New("no principal to synthesize a token for")

// SessionClaims is the session data a synthesized token carries.
// Empty optional fields are written as JSON null.
type SessionClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// synthesizedClaims is the payload shape: registered sub/iat/exp plus profile fields.
type synthesizedClaims struct {
	jwt.RegisteredClaims
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
}

// Synthesize builds header.payload. with {"alg":"none"} and an empty signature segment.
func Synthesize(c SessionClaims, now time.Time) (string, error) {
	if c.Subject == "" {
		return "", ErrNoPrincipal
	}

	claims := synthesizedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SyntheticTTL)),
		},
		Email:   optional(c.Email),
		Name:    optional(c.Name),
		Picture: optional(c.Picture),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "", fmt.Errorf("encoding synthesized token: %w", err)
	}
	return token, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
