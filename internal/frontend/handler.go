// Package frontend serves the browser-facing web process: login, the
// protected profile page, and the internal sync and credential endpoints.
//
// handler.go -- Handler definition and shared helpers.
package frontend

import (
	"net/http"
	"time"

	"github.com/MGallo-Code/ferry/internal/oauth"
	"github.com/MGallo-Code/ferry/internal/orchestrator"
	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/web"
)

// Handler holds dependencies for all frontend route handlers.
type Handler struct {
	Sessions     *session.Manager
	Provider     oauth.Provider
	Sync         orchestrator.Syncer
	Orchestrator *orchestrator.Orchestrator

	// AppBaseURL is where the provider sends the browser after logout.
	AppBaseURL string
	// BackendURL is only shown in hints and diagnostics.
	BackendURL string
	// Audience is the configured API audience, empty when none.
	Audience string

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// currentSession loads the caller's session. Store failures are logged and
// the request is treated as anonymous; a broken session store must not take
// the pages down with it.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) *session.Identity {
	s, err := h.Sessions.Load(w, r)
	if err != nil {
		web.LogError(r, "loading session failed", "error", err)
		return nil
	}
	return s
}

// errorBody is the frontend's failure shape for JSON endpoints.
type errorBody struct {
	Synced bool   `json:"synced"`
	Error  string `json:"error"`
	Hint   string `json:"hint,omitempty"`
}

// BadRequest returns a 400 JSON response with the given message.
func BadRequest(w http.ResponseWriter, message string) {
	web.WriteJSON(w, http.StatusBadRequest, errorBody{Error: message})
}

// Unauthorized returns a 401 JSON response with the given message.
func Unauthorized(w http.ResponseWriter, message string) {
	web.WriteJSON(w, http.StatusUnauthorized, errorBody{Error: message})
}

// InternalServerError logs the error and returns a generic 500 JSON response.
// Never exposes internal error details.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	web.LogError(r, "internal server error", "error", err)
	web.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// CheckHealth handles GET /health -- pings the session store.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	web.CheckHealth(w, r, map[string]web.HealthChecker{"sessions": h.Sessions.Store})
}
