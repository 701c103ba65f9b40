// Package backend is the resource server: every authenticated request
// reconciles the caller's user record from its bearer credential.
//
// handler.go -- Handler definition, store interface, and response helpers.
package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/MGallo-Code/ferry/internal/store"
	"github.com/MGallo-Code/ferry/internal/tokens"
	"github.com/MGallo-Code/ferry/internal/web"
	"github.com/gofrs/uuid/v5"
)

// UserStore is the persistence the backend needs.
// Satisfied by *store.PostgresStore and *store.MemoryUserStore.
type UserStore interface {
	UpsertUserBySubject(ctx context.Context, id uuid.UUID, p store.LoginProfile, now time.Time) (*store.User, error)
	GetUserBySubject(ctx context.Context, subject string) (*store.User, error)
	CheckHealth(ctx context.Context) error
}

// Handler holds dependencies for all backend route handlers.
type Handler struct {
	Users   UserStore
	Decoder tokens.Decoder
	Now     func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// detailBody is the backend's error shape.
type detailBody struct {
	Detail string `json:"detail"`
}

// Unauthorized returns a 401 {detail} response with a Bearer challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="ferry"`)
	web.WriteJSON(w, http.StatusUnauthorized, detailBody{detail})
}

// InternalServerError returns a 500 {detail} response. The caller logs.
func InternalServerError(w http.ResponseWriter, detail string) {
	web.WriteJSON(w, http.StatusInternalServerError, detailBody{detail})
}

// Me handles GET /api/v1/auth/me -- returns the caller's canonical user record.
// RequireUser has already reconciled it.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		// Route mounted without RequireUser.
		web.LogError(r, "me: no user in context")
		InternalServerError(w, "failed to sync user")
		return
	}
	web.WriteJSON(w, http.StatusOK, u)
}

// CheckHealth handles GET /health -- pings the user store.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	web.CheckHealth(w, r, map[string]web.HealthChecker{"users": h.Users})
}
