package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/ferry/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func newTestManager(t *testing.T, st Store) *Manager {
	t.Helper()
	codec, err := NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return NewManager(st, codec, time.Hour, false)
}

// saveAndCookie saves s and returns the cookie the browser would send back.
func saveAndCookie(t *testing.T, m *Manager, s *Identity) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	if err := m.Save(context.Background(), w, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == m.CookieName() {
			return c
		}
	}
	t.Fatal("Save did not set the session cookie")
	return nil
}

func requestWith(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

// clearedCookie reports whether w carries an expiring session cookie.
func clearedCookie(w *httptest.ResponseRecorder, name string) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == name && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

// failingStore returns err from every call.
type failingStore struct{ err error }

func (f failingStore) GetSession(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) SetSession(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingStore) DeleteSession(context.Context, string) error { return f.err }
func (f failingStore) CheckHealth(context.Context) error         { return f.err }

// --- Save + Load ---

func TestManagerSaveAndLoad(t *testing.T) {
	st := store.NewMemorySessionStore(10, time.Hour)
	m := newTestManager(t, st)

	in := &Identity{
		PrincipalID:        "idp|42",
		Email:              "a@b.com",
		IdentityCredential: "h.p.s",
		Claims:             map[string]any{"sub": "idp|42", "email_verified": true},
	}
	c := saveAndCookie(t, m, in)

	if c.HttpOnly != true || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("cookie attributes: %+v", c)
	}
	if strings.Contains(c.Value, in.ID) {
		t.Error("cookie value exposes the raw session id")
	}

	w := httptest.NewRecorder()
	got, err := m.Load(w, requestWith(c))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.ID != in.ID || got.PrincipalID != "idp|42" || got.Email != "a@b.com" || got.IdentityCredential != "h.p.s" {
		t.Errorf("loaded session: %+v", got)
	}
	if got.PrimaryCredential != "" {
		t.Errorf("PrimaryCredential: expected empty, got %q", got.PrimaryCredential)
	}
	if got.Claims["email_verified"] != true {
		t.Errorf("Claims: got %v", got.Claims)
	}
}

func TestManagerSaveRejectsAnonymous(t *testing.T) {
	m := newTestManager(t, store.NewMemorySessionStore(10, time.Hour))
	if err := m.Save(context.Background(), httptest.NewRecorder(), &Identity{Email: "a@b.com"}); err == nil {
		t.Error("expected error saving session without principal")
	}
}

// --- Load edge cases ---

func TestManagerLoad(t *testing.T) {
	t.Run("no cookie is unauthenticated", func(t *testing.T) {
		m := newTestManager(t, store.NewMemorySessionStore(10, time.Hour))
		got, err := m.Load(httptest.NewRecorder(), requestWith(nil))
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
	})

	t.Run("tampered cookie is cleared and unauthenticated", func(t *testing.T) {
		m := newTestManager(t, store.NewMemorySessionStore(10, time.Hour))
		w := httptest.NewRecorder()
		got, err := m.Load(w, requestWith(&http.Cookie{Name: m.CookieName(), Value: "garbage"}))
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
		if !clearedCookie(w, m.CookieName()) {
			t.Error("expected session cookie to be cleared")
		}
	})

	t.Run("cookie from another secret is rejected", func(t *testing.T) {
		st := store.NewMemorySessionStore(10, time.Hour)
		other, _ := NewCodec(strings.Repeat("z", 40), time.Hour)
		foreign := NewManager(st, other, time.Hour, false)
		c := saveAndCookie(t, foreign, &Identity{PrincipalID: "idp|1"})

		m := newTestManager(t, st)
		w := httptest.NewRecorder()
		if got, _ := m.Load(w, requestWith(c)); got != nil {
			t.Error("expected foreign cookie to be rejected")
		}
		if !clearedCookie(w, m.CookieName()) {
			t.Error("expected session cookie to be cleared")
		}
	})

	t.Run("server-side session gone clears cookie", func(t *testing.T) {
		st := store.NewMemorySessionStore(10, time.Hour)
		m := newTestManager(t, st)
		in := &Identity{PrincipalID: "idp|1"}
		c := saveAndCookie(t, m, in)
		st.DeleteSession(context.Background(), in.ID)

		w := httptest.NewRecorder()
		got, err := m.Load(w, requestWith(c))
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
		if !clearedCookie(w, m.CookieName()) {
			t.Error("expected session cookie to be cleared")
		}
	})

	t.Run("corrupted payload is dropped", func(t *testing.T) {
		st := store.NewMemorySessionStore(10, time.Hour)
		m := newTestManager(t, st)
		in := &Identity{PrincipalID: "idp|1"}
		c := saveAndCookie(t, m, in)
		st.SetSession(context.Background(), in.ID, []byte("{not json"), time.Minute)

		w := httptest.NewRecorder()
		if got, err := m.Load(w, requestWith(c)); err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
		if _, err := st.GetSession(context.Background(), in.ID); !errors.Is(err, store.ErrSessionNotFound) {
			t.Error("expected corrupted session to be deleted")
		}
	})

	t.Run("expired session is dropped", func(t *testing.T) {
		st := store.NewMemorySessionStore(10, time.Hour)
		m := newTestManager(t, st)
		c := saveAndCookie(t, m, &Identity{PrincipalID: "idp|1"})
		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		if got, _ := m.Load(httptest.NewRecorder(), requestWith(c)); got != nil {
			t.Error("expected expired session to be rejected")
		}
	})

	t.Run("store failure is returned", func(t *testing.T) {
		st := store.NewMemorySessionStore(10, time.Hour)
		m := newTestManager(t, st)
		c := saveAndCookie(t, m, &Identity{PrincipalID: "idp|1"})

		m.Store = failingStore{err: errors.New("redis down")}
		if _, err := m.Load(httptest.NewRecorder(), requestWith(c)); err == nil {
			t.Error("expected store error to surface")
		}
	})
}

// --- Destroy ---

func TestManagerDestroy(t *testing.T) {
	st := store.NewMemorySessionStore(10, time.Hour)
	m := newTestManager(t, st)
	in := &Identity{PrincipalID: "idp|1"}
	c := saveAndCookie(t, m, in)

	w := httptest.NewRecorder()
	if err := m.Destroy(context.Background(), w, requestWith(c)); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if !clearedCookie(w, m.CookieName()) {
		t.Error("expected session cookie to be cleared")
	}
	if _, err := st.GetSession(context.Background(), in.ID); !errors.Is(err, store.ErrSessionNotFound) {
		t.Error("expected session to be deleted")
	}

	// No cookie: still clears, no error.
	w = httptest.NewRecorder()
	if err := m.Destroy(context.Background(), w, requestWith(nil)); err != nil {
		t.Errorf("Destroy without cookie failed: %v", err)
	}
}

// --- Identity ---

func TestIdentityRawClaims(t *testing.T) {
	var nilSession *Identity
	if nilSession.Authenticated() {
		t.Error("nil session should not be authenticated")
	}
	if len(nilSession.RawClaims()) != 0 {
		t.Error("nil session should have no claims")
	}

	s := &Identity{
		PrincipalID: "idp|42",
		Email:       "a@b.com",
		Claims:      map[string]any{"name": "From Provider", "email": ""},
	}
	got := s.RawClaims()
	if got["sub"] != "idp|42" || got["email"] != "a@b.com" || got["name"] != "From Provider" {
		t.Errorf("RawClaims: got %v", got)
	}
	if _, ok := got["picture"]; ok {
		t.Error("picture should be absent when neither source has it")
	}
}

// --- Codec ---

func TestNewCodecRejectsShortSecret(t *testing.T) {
	if _, err := NewCodec("short", time.Hour); !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("expected ErrSecretTooShort, got %v", err)
	}
}
