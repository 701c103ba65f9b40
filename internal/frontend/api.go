// api.go -- Internal JSON endpoints called by the profile page's script.
package frontend

import (
	"net/http"

	"github.com/MGallo-Code/ferry/internal/credential"
	"github.com/MGallo-Code/ferry/internal/store"
	"github.com/MGallo-Code/ferry/internal/syncclient"
	"github.com/MGallo-Code/ferry/internal/web"
)

// syncedBody is the success shape of GET /api/sync-user.
type syncedBody struct {
	Synced bool            `json:"synced"`
	User   *store.User     `json:"user"`
	Method credential.Kind `json:"method"`
}

// SyncUser handles GET /api/sync-user -- runs the credential cascade once and
// reports the outcome. Always answers with a structured body.
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)
	if !s.Authenticated() {
		Unauthorized(w, "not authenticated")
		return
	}

	res := h.Sync.SyncSession(r.Context(), s, h.now())
	status, body := syncResponse(res)

	switch res.Outcome {
	case syncclient.Synced:
		web.LogInfo(r, "user synced", "principal", s.PrincipalID, "method", res.Method.String())
	case syncclient.Deferred:
		web.LogInfo(r, "user sync deferred", "principal", s.PrincipalID, "reason", res.Reason)
	default:
		web.LogWarn(r, "user sync failed",
			"principal", s.PrincipalID,
			"method", res.Method.String(),
			"status", res.StatusCode,
			"reason", res.Reason,
			"error", res.Err,
		)
	}
	web.WriteJSON(w, status, body)
}

// syncResponse maps a sync result to its HTTP status and body.
// Backend refusals keep the backend's status. A 2xx the frontend could not
// read is a bad gateway; no answer at all is service unavailable.
func syncResponse(res syncclient.Result) (int, any) {
	switch res.Outcome {
	case syncclient.Synced:
		return http.StatusOK, syncedBody{Synced: true, User: res.User, Method: res.Method}
	case syncclient.Deferred:
		return http.StatusOK, errorBody{Error: res.Reason, Hint: res.Hint}
	}

	body := errorBody{Error: res.Reason, Hint: res.Hint}
	switch {
	case res.StatusCode == 0:
		return http.StatusServiceUnavailable, body
	case res.StatusCode >= 200 && res.StatusCode <= 299:
		return http.StatusBadGateway, body
	default:
		if body.Hint == "" && res.AuthRejected() {
			body.Hint = "the backend rejected every available credential; check OIDC_AUDIENCE matches on both sides"
		}
		return res.StatusCode, body
	}
}

// tokenBody is the shape of GET /api/auth-token.
type tokenBody struct {
	AccessToken *string    `json:"accessToken"`
	Method      string     `json:"method,omitempty"`
	Error       string     `json:"error,omitempty"`
	Hint        string     `json:"hint,omitempty"`
	Debug       *tokenInfo `json:"debug,omitempty"`
}

// tokenInfo reports which credential tiers the session carries. Never tokens.
type tokenInfo struct {
	HasAccessToken     bool `json:"hasAccessToken"`
	HasIDToken         bool `json:"hasIdToken"`
	HasPrincipal       bool `json:"hasPrincipal"`
	AudienceConfigured bool `json:"audienceConfigured"`
}

// AuthToken handles GET /api/auth-token -- returns the best available bearer
// credential for client-side backend calls. Always 200, even without a
// credential, so clients never retry in a loop.
func (h *Handler) AuthToken(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)
	if !s.Authenticated() {
		web.WriteJSON(w, http.StatusOK, tokenBody{Error: "not authenticated", Hint: "log in at /auth/login"})
		return
	}

	info := &tokenInfo{
		HasAccessToken:     s.PrimaryCredential != "",
		HasIDToken:         s.IdentityCredential != "",
		HasPrincipal:       true,
		AudienceConfigured: h.Audience != "",
	}

	sel := credential.Select(s, h.now())
	if sel.Kind == credential.None {
		web.LogWarn(r, "no credential available for authenticated session", "principal", s.PrincipalID)
		web.WriteJSON(w, http.StatusOK, tokenBody{
			Error: "no credential available",
			Hint:  "user will sync on first real API call",
			Debug: info,
		})
		return
	}

	out := tokenBody{AccessToken: &sel.Token, Method: sel.Kind.String(), Debug: info}
	if sel.Kind != credential.API {
		out.Hint = "no API access token in session; set OIDC_AUDIENCE to have the provider issue one"
	}
	web.WriteJSON(w, http.StatusOK, out)
}
