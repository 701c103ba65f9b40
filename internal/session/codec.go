// codec.go -- Encrypted, authenticated cookie values.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum SESSION_SECRET length in bytes.
const MinSecretLength = 32

// ErrSecretTooShort is returned by NewCodec for secrets under MinSecretLength.
var ErrSecretTooShort = errors.New("session secret too short")

// Codec encrypts (AES-256) and signs (HMAC-SHA256) cookie values.
// Both keys are derived from one secret with HKDF so rotating the secret
// rotates both.
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec derives hash and block keys from secret. maxAge bounds how old an
// encoded value may be when decoded.
func NewCodec(secret string, maxAge time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSecretTooShort, MinSecretLength, len(secret))
	}

	hashKey, err := deriveKey(secret, "ferry session hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "ferry session block", 32)
	if err != nil {
		return nil, err
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Codec{sc: sc}, nil
}

func deriveKey(secret, info string, n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", info, err)
	}
	return key, nil
}

// Encode returns the cookie value for v under cookie name.
func (c *Codec) Encode(name string, v any) (string, error) {
	return c.sc.Encode(name, v)
}

// Decode verifies and decrypts value into dst.
func (c *Codec) Decode(name, value string, dst any) error {
	return c.sc.Decode(name, value, dst)
}
