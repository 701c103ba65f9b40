// manager.go -- Loading, saving and destroying sessions behind the cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MGallo-Code/ferry/internal/store"
)

// Cookie names. __Host- requires Secure, so plain-HTTP development uses the bare name.
const (
	SecureCookieName   = "__Host-ferry-session"
	InsecureCookieName = "ferry-session"
)

// Store persists opaque session payloads.
// Satisfied by *store.RedisSessionStore and *store.MemorySessionStore.
type Store interface {
	GetSession(ctx context.Context, id string) ([]byte, error)
	SetSession(ctx context.Context, id string, data []byte, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
	CheckHealth(ctx context.Context) error
}

// Manager ties the session cookie to server-side session state.
type Manager struct {
	Store Store
	Codec *Codec
	TTL   time.Duration
	// Secure selects the __Host- cookie with the Secure attribute.
	Secure bool

	now func() time.Time
}

// NewManager returns a Manager issuing sessions that live for ttl.
func NewManager(st Store, codec *Codec, ttl time.Duration, secure bool) *Manager {
	return &Manager{Store: st, Codec: codec, TTL: ttl, Secure: secure, now: time.Now}
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// CookieName returns the cookie name in use.
func (m *Manager) CookieName() string {
	if m.Secure {
		return SecureCookieName
	}
	return InsecureCookieName
}

// Load returns the session for r, or nil when the request is unauthenticated.
// A tampered, stale or orphaned cookie is cleared and treated as no session.
// Only Store infrastructure failures are returned as errors.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Identity, error) {
	c, err := r.Cookie(m.CookieName())
	if err != nil || c.Value == "" {
		return nil, nil
	}

	var id string
	if err := m.Codec.Decode(m.CookieName(), c.Value, &id); err != nil || id == "" {
		slog.Warn("session cookie rejected", "reason", "decode_failed", "error", err)
		m.clearCookie(w)
		return nil, nil
	}

	raw, err := m.Store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			m.clearCookie(w)
			return nil, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var s Identity
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("session payload rejected", "reason", "unmarshal_failed", "error", err)
		m.drop(r.Context(), w, id)
		return nil, nil
	}
	if !s.Authenticated() || (!s.ExpiresAt.IsZero() && m.clock().After(s.ExpiresAt)) {
		m.drop(r.Context(), w, id)
		return nil, nil
	}
	s.ID = id
	return &s, nil
}

// Save persists s and sets the session cookie. A new random ID is assigned
// when s.ID is empty; CreatedAt and ExpiresAt are filled when zero.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Identity) error {
	if !s.Authenticated() {
		return errors.New("refusing to save session without principal")
	}
	now := m.clock()
	if s.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		s.ID = id
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(m.TTL)
	}
	ttl := s.ExpiresAt.Sub(now)

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := m.Store.SetSession(ctx, s.ID, data, ttl); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	value, err := m.Codec.Encode(m.CookieName(), s.ID)
	if err != nil {
		return fmt.Errorf("encoding session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
	return nil
}

// Destroy deletes the server-side session for r (if any) and clears the cookie.
// Store failures are returned after the cookie is cleared.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer m.clearCookie(w)

	c, err := r.Cookie(m.CookieName())
	if err != nil || c.Value == "" {
		return nil
	}
	var id string
	if err := m.Codec.Decode(m.CookieName(), c.Value, &id); err != nil || id == "" {
		return nil
	}
	if err := m.Store.DeleteSession(ctx, id); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// drop deletes id and clears the cookie; delete failures are only logged.
func (m *Manager) drop(ctx context.Context, w http.ResponseWriter, id string) {
	if err := m.Store.DeleteSession(ctx, id); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		slog.Warn("failed to delete rejected session", "error", err)
	}
	m.clearCookie(w)
}

// clearCookie overwrites the session cookie with MaxAge=-1 to trigger browser deletion.
func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// newSessionID returns 256 random bits, base64url encoded.
func newSessionID() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
