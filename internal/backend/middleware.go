// middleware.go

// Bearer authentication middleware.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MGallo-Code/ferry/internal/store"
	"github.com/MGallo-Code/ferry/internal/tokens"
	"github.com/MGallo-Code/ferry/internal/web"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid/v5"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const userKey contextKey = "user"

// UserFromContext retrieves the reconciled user for this request.
// Returns nil and false if RequireUser hasn't run.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userKey).(*store.User)
	return u, ok && u != nil
}

// RequireUser decodes the bearer credential, upserts the user it names, and
// injects the resulting record into context. Every authenticated route sits
// behind it, so any call the user makes reconciles their record.
// Returns 401 for unusable credentials and 500 when the upsert fails.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			web.LogWarn(r, "require user failed", "reason", "missing_bearer")
			Unauthorized(w, "missing bearer token")
			return
		}

		claims, err := h.Decoder.Decode(raw)
		if err != nil {
			reason := tokens.ErrMalformedToken
			if errors.Is(err, tokens.ErrMissingSubject) {
				reason = tokens.ErrMissingSubject
			}
			web.LogWarn(r, "require user failed", "reason", reason.Error(), "token_shape", tokens.Shape(raw), "error", err)
			Unauthorized(w, reason.Error())
			return
		}

		u, err := h.upsert(r.Context(), claims)
		if err != nil {
			web.LogError(r, "require user failed", "reason", "upsert_failed", "subject", claims.Subject, "error", err)
			InternalServerError(w, "failed to sync user")
			return
		}

		web.LogDebug(r, "user reconciled", "user_id", u.ID, "subject", u.ExternalSubjectID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// upsert creates or reconciles the user named by claims.
// The UUID is only used if the subject is new.
func (h *Handler) upsert(ctx context.Context, c *tokens.Claims) (*store.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating user id: %w", err)
	}
	return h.Users.UpsertUserBySubject(ctx, id, store.LoginProfile{
		Subject:     c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName(),
		PictureURL:  c.Picture,
	}, h.now())
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// CORS allows the frontend origins to call the API from the browser with a
// bearer header. No cookies cross origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Accept", "Cache-Control", "Content-Type"},
		MaxAge:         300,
	})
}
