// responses.go -- JSON response helpers.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MGallo-Code/ferry/internal/store"
)

// WriteJSON writes v as a JSON body with the given status.
// Responses are never cached; identity data changes on every login.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing json response", "error", err)
	}
}

// HealthChecker is anything with a CheckHealth ping.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckHealth pings every named dependency and writes {name: status}.
// Status is "ok", "disabled" (in-memory stand-in) or "error".
// Returns 200 unless a dependency reports an error, then 503.
func CheckHealth(w http.ResponseWriter, r *http.Request, deps map[string]HealthChecker) {
	out := make(map[string]string, len(deps))
	status := http.StatusOK
	for name, dep := range deps {
		err := dep.CheckHealth(r.Context())
		switch {
		case err == nil:
			out[name] = "ok"
		case errors.Is(err, store.ErrStoreDisabled):
			out[name] = "disabled"
		default:
			LogError(r, name+" health check failed", "error", err)
			out[name] = "error"
			status = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, status, out)
}
