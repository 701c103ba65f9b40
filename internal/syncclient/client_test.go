package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MGallo-Code/ferry/internal/credential"
	"github.com/MGallo-Code/ferry/internal/session"
)

var testNow = time.Unix(1_700_000_000, 0)

// fakeBackend records every Authorization header and answers per token.
type fakeBackend struct {
	mu     sync.Mutex
	tokens []string
	// status maps a bearer token to the status it gets; default 200.
	status map[string]int
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	f.tokens = append(f.tokens, tok)
	f.mu.Unlock()

	if r.URL.Path != MePath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if code, ok := f.status[tok]; ok && code != http.StatusOK {
		w.WriteHeader(code)
		w.Write([]byte(`{"detail":"rejected"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":                  "0190c1c4-0000-7000-8000-000000000001",
		"external_subject_id": "idp|42",
		"email":               "a@b.com",
		"last_login_at":       testNow,
		"created_at":          testNow,
		"updated_at":          testNow,
	})
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func newBackend(t *testing.T, status map[string]int) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{status: status}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, New(srv.URL)
}

// --- Sync ---

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("none defers without a network call", func(t *testing.T) {
		fb, c := newBackend(t, nil)
		res := c.Sync(ctx, credential.Selected{Kind: credential.None})
		if res.Outcome != Deferred || res.Reason != "no session" {
			t.Errorf("expected Deferred(no session), got %v(%s)", res.Outcome, res.Reason)
		}
		if n := len(fb.calls()); n != 0 {
			t.Errorf("expected 0 calls, got %d", n)
		}
	})

	t.Run("2xx with record is synced", func(t *testing.T) {
		_, c := newBackend(t, nil)
		res := c.Sync(ctx, credential.Selected{Kind: credential.API, Token: "a.b.c"})
		if res.Outcome != Synced {
			t.Fatalf("expected Synced, got %v (%v)", res.Outcome, res.Err)
		}
		if res.User == nil || res.User.ExternalSubjectID != "idp|42" {
			t.Errorf("User: got %+v", res.User)
		}
		if res.Method != credential.API {
			t.Errorf("Method: expected API, got %v", res.Method)
		}
	})

	t.Run("sends bearer and no-cache headers", func(t *testing.T) {
		var got http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			w.Write([]byte(`{"external_subject_id":"idp|1"}`))
		}))
		defer srv.Close()

		New(srv.URL).Sync(ctx, credential.Selected{Kind: credential.Identity, Token: "x.y.z"})
		if got.Get("Authorization") != "Bearer x.y.z" {
			t.Errorf("Authorization: got %q", got.Get("Authorization"))
		}
		if got.Get("Cache-Control") != "no-cache" {
			t.Errorf("Cache-Control: got %q", got.Get("Cache-Control"))
		}
	})

	t.Run("non-2xx is failed with server detail", func(t *testing.T) {
		_, c := newBackend(t, map[string]int{"bad.tok.en": http.StatusInternalServerError})
		res := c.Sync(ctx, credential.Selected{Kind: credential.Identity, Token: "bad.tok.en"})
		if res.Outcome != Failed || res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected Failed(500), got %v(%d)", res.Outcome, res.StatusCode)
		}
		if res.Reason != "rejected" {
			t.Errorf("Reason: expected server detail, got %q", res.Reason)
		}
		if res.AuthRejected() {
			t.Error("500 is not an authentication rejection")
		}
	})

	t.Run("2xx with undecodable body is failed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>proxy page</html>`))
		}))
		defer srv.Close()

		res := New(srv.URL).Sync(ctx, credential.Selected{Kind: credential.API, Token: "a.b.c"})
		if res.Outcome != Failed {
			t.Errorf("expected Failed, got %v", res.Outcome)
		}
	})

	t.Run("unreachable backend is failed with hint naming base url", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()

		res := New(base).Sync(ctx, credential.Selected{Kind: credential.API, Token: "a.b.c"})
		if res.Outcome != Failed || res.Err == nil {
			t.Fatalf("expected Failed with transport error, got %v (%v)", res.Outcome, res.Err)
		}
		if res.StatusCode != 0 {
			t.Errorf("StatusCode: expected 0, got %d", res.StatusCode)
		}
		if !strings.Contains(res.Hint, base) || !strings.Contains(res.Hint, "running") {
			t.Errorf("Hint: expected base url and running hint, got %q", res.Hint)
		}
	})
}

// --- SyncSession ---

func TestSyncSession(t *testing.T) {
	ctx := context.Background()

	t.Run("all tiers present uses only the API credential", func(t *testing.T) {
		fb, c := newBackend(t, nil)
		s := &session.Identity{PrincipalID: "idp|42", PrimaryCredential: "api.tok.en", IdentityCredential: "id.tok.en"}

		res := c.SyncSession(ctx, s, testNow)
		if res.Outcome != Synced || res.Method != credential.API {
			t.Fatalf("expected Synced via API, got %v via %v", res.Outcome, res.Method)
		}
		if calls := fb.calls(); len(calls) != 1 || calls[0] != "api.tok.en" {
			t.Errorf("calls: got %v", calls)
		}
	})

	t.Run("rejected tier falls through in strict order", func(t *testing.T) {
		fb, c := newBackend(t, map[string]int{"api.tok.en": http.StatusUnauthorized, "id.tok.en": http.StatusForbidden})
		s := &session.Identity{PrincipalID: "idp|42", PrimaryCredential: "api.tok.en", IdentityCredential: "id.tok.en"}

		res := c.SyncSession(ctx, s, testNow)
		if res.Outcome != Synced || res.Method != credential.Synthesized {
			t.Fatalf("expected Synced via synthesized, got %v via %v", res.Outcome, res.Method)
		}
		calls := fb.calls()
		if len(calls) != 3 || calls[0] != "api.tok.en" || calls[1] != "id.tok.en" {
			t.Errorf("calls: expected api, id, synthesized; got %v", calls)
		}
		if len(calls) == 3 && len(strings.Split(calls[2], ".")) != 3 {
			t.Errorf("synthesized token is not three segments: %q", calls[2])
		}
	})

	t.Run("non-auth failure stops the cascade", func(t *testing.T) {
		fb, c := newBackend(t, map[string]int{"api.tok.en": http.StatusInternalServerError})
		s := &session.Identity{PrincipalID: "idp|42", PrimaryCredential: "api.tok.en", IdentityCredential: "id.tok.en"}

		res := c.SyncSession(ctx, s, testNow)
		if res.Outcome != Failed || res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected Failed(500), got %v(%d)", res.Outcome, res.StatusCode)
		}
		if n := len(fb.calls()); n != 1 {
			t.Errorf("expected 1 call, got %d", n)
		}
	})

	t.Run("every tier rejected returns last failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"missing subject claim"}`))
		}))
		defer srv.Close()

		res := New(srv.URL).SyncSession(ctx, &session.Identity{PrincipalID: "idp|42", IdentityCredential: "id.tok.en"}, testNow)
		if res.Outcome != Failed || res.Method != credential.Synthesized || res.Reason != "missing subject claim" {
			t.Errorf("expected Failed via synthesized, got %v via %v (%s)", res.Outcome, res.Method, res.Reason)
		}
	})

	t.Run("no credential defers with hint", func(t *testing.T) {
		fb, c := newBackend(t, nil)
		res := c.SyncSession(ctx, &session.Identity{Email: "a@b.com"}, testNow)
		if res.Outcome != Deferred || res.Hint == "" {
			t.Errorf("expected Deferred with hint, got %v (%q)", res.Outcome, res.Hint)
		}
		if n := len(fb.calls()); n != 0 {
			t.Errorf("expected 0 calls, got %d", n)
		}

		if res := c.SyncSession(ctx, nil, testNow); res.Outcome != Deferred {
			t.Errorf("nil session: expected Deferred, got %v", res.Outcome)
		}
	})
}
