// login.go -- OIDC login, callback, and logout handlers.
package frontend

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/MGallo-Code/ferry/internal/oauth"
	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/web"
)

// oauthStateTTL bounds the login round-trip.
const oauthStateTTL = 10 * time.Minute

const (
	secureStateCookie   = "__Host-ferry-oauth"
	insecureStateCookie = "ferry-oauth"
)

// oauthState is the payload sealed into the state cookie during the login round-trip.
type oauthState struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// Login handles GET /auth/login -- generates PKCE + state, seals them in a
// short-lived HttpOnly cookie, and redirects the browser to the provider.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomString()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	codeVerifier, err := randomString()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	challenge := sha256.Sum256([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(challenge[:])

	if err := h.setStateCookie(w, oauthState{State: state, Verifier: codeVerifier}); err != nil {
		InternalServerError(w, r, err)
		return
	}
	http.Redirect(w, r, h.Provider.AuthCodeURL(state, codeChallenge), http.StatusFound)
}

// Callback handles GET /auth/callback -- verifies state, exchanges the code,
// stores the resulting session, and sends the browser to /profile.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		web.LogWarn(r, "auth callback: provider returned error", "error", e, "description", q.Get("error_description"))
		Unauthorized(w, "authentication failed")
		return
	}

	// Read and immediately clear the state cookie to prevent replay.
	c, err := r.Cookie(h.stateCookieName())
	if err != nil {
		web.LogWarn(r, "auth callback: missing state cookie")
		BadRequest(w, "missing oauth state")
		return
	}
	h.clearStateCookie(w)

	var sc oauthState
	if err := h.Sessions.Codec.Decode(h.stateCookieName(), c.Value, &sc); err != nil {
		web.LogWarn(r, "auth callback: bad state cookie", "error", err)
		BadRequest(w, "invalid oauth state")
		return
	}
	if sc.State == "" || subtle.ConstantTimeCompare([]byte(sc.State), []byte(q.Get("state"))) != 1 {
		web.LogWarn(r, "auth callback: state mismatch")
		Unauthorized(w, "invalid oauth state")
		return
	}

	tok, err := h.Provider.Exchange(r.Context(), q.Get("code"), sc.Verifier)
	if err != nil {
		web.LogWarn(r, "auth callback: exchange failed", "error", err, "provider", h.Provider.Name())
		Unauthorized(w, "authentication failed")
		return
	}

	s := identityFromTokens(tok)
	if err := h.Sessions.Save(r.Context(), w, s); err != nil {
		InternalServerError(w, r, err)
		return
	}

	web.LogInfo(r, "user logged in",
		"principal", s.PrincipalID,
		"provider", h.Provider.Name(),
		"has_access_token", s.PrimaryCredential != "",
		"has_id_token", s.IdentityCredential != "",
	)
	if s.PrimaryCredential == "" && h.Audience != "" {
		web.LogWarn(r, "audience configured but provider issued no API access token", "audience", h.Audience)
	}
	http.Redirect(w, r, "/profile", http.StatusFound)
}

// Logout handles GET /auth/logout -- destroys the session locally, then sends
// the browser to the provider to end its session too.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Destroy(r.Context(), w, r); err != nil {
		// Cookie is already cleared; the stored entry expires on its own.
		web.LogWarn(r, "logout: deleting session failed", "error", err)
	}
	http.Redirect(w, r, h.Provider.LogoutURL(h.AppBaseURL+"/"), http.StatusFound)
}

// identityFromTokens builds a fresh session from a successful code exchange.
func identityFromTokens(t *oauth.Tokens) *session.Identity {
	s := &session.Identity{
		PrimaryCredential:  t.AccessToken,
		IdentityCredential: t.IDToken,
		Claims:             t.RawClaims,
	}
	if c := t.Claims; c != nil {
		s.PrincipalID = c.Sub
		s.Email = c.Email
		s.DisplayName = c.Name
		if s.DisplayName == "" {
			s.DisplayName = c.Nickname
		}
		s.PictureURL = c.Picture
	}
	return s
}

func (h *Handler) stateCookieName() string {
	if h.Sessions.Secure {
		return secureStateCookie
	}
	return insecureStateCookie
}

// setStateCookie seals st with the session codec and stores it for oauthStateTTL.
func (h *Handler) setStateCookie(w http.ResponseWriter, st oauthState) error {
	value, err := h.Sessions.Codec.Encode(h.stateCookieName(), st)
	if err != nil {
		return fmt.Errorf("encoding oauth state: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.stateCookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Sessions.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateTTL.Seconds()),
	})
	return nil
}

// clearStateCookie expires the state cookie immediately.
func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.stateCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Sessions.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// randomString returns 32 random bytes, base64url encoded.
func randomString() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating random value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
