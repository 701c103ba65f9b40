// pages.go -- Server-rendered HTML pages.
package frontend

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/MGallo-Code/ferry/internal/orchestrator"
	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/web"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type homeData struct {
	Session *session.Identity
}

type profileData struct {
	Session *session.Identity
	// Claims is the session's claim set, indented for display.
	Claims string
	// RenderState is the render-time attempt's state when the page was written.
	RenderState string
}

// Home handles GET / -- landing page with a login or profile link.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home.html", homeData{Session: h.currentSession(w, r)})
}

// Profile handles GET /profile -- the protected page.
// Starts a render-time sync in the background and renders immediately; the
// page's script retries once through /api/sync-user if needed.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)
	if !s.Authenticated() {
		http.Redirect(w, r, "/auth/login", http.StatusFound)
		return
	}

	lc := orchestrator.NewLifecycle()
	if h.Orchestrator != nil {
		h.Orchestrator.RenderAttempt(r.Context(), lc, s)
	}

	claims, err := json.MarshalIndent(s.RawClaims(), "", "  ")
	if err != nil {
		web.LogWarn(r, "marshaling claims for display failed", "error", err)
	}
	h.render(w, r, "profile.html", profileData{
		Session:     s,
		Claims:      string(claims),
		RenderState: lc.State().String(),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		web.LogError(r, "rendering page failed", "template", name, "error", err)
	}
}
