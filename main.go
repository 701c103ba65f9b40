package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MGallo-Code/ferry/internal/backend"
	"github.com/MGallo-Code/ferry/internal/config"
	"github.com/MGallo-Code/ferry/internal/frontend"
	"github.com/MGallo-Code/ferry/internal/oauth"
	"github.com/MGallo-Code/ferry/internal/orchestrator"
	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/store"
	"github.com/MGallo-Code/ferry/internal/syncclient"
	"github.com/MGallo-Code/ferry/internal/tokens"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// newRootCmd builds `ferry frontend` and `ferry backend`.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ferry",
		Short:         "Session-to-backend identity synchronization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "frontend",
			Short: "Serve the browser-facing web app (login, profile, sync endpoints)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.LoadFrontendConfig()
				if err != nil {
					return err
				}
				setupLogging(cfg.LogLevel)
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return runFrontend(ctx, cfg, nil)
			},
		},
		&cobra.Command{
			Use:   "backend",
			Short: "Serve the resource server (GET /api/v1/auth/me)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.LoadBackendConfig()
				if err != nil {
					return err
				}
				setupLogging(cfg.LogLevel)
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return runBackend(ctx, cfg, nil)
			},
		},
	)
	return root
}

// setupLogging installs a JSON slog handler at level.
// Source locations are included at debug level only.
func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})))
}

// runFrontend holds all frontend server logic and returns error instead of
// calling os.Exit, so deferred cleanup always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func runFrontend(ctx context.Context, cfg *config.FrontendConfig, ready chan<- string) error {
	var st session.Store
	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		st = store.NewRedisSessionStore(rdb)
	} else {
		slog.Warn("REDIS_URL not set; sessions are kept in memory and lost on restart")
		st = store.NewMemorySessionStore(cfg.SessionMemorySize, cfg.SessionTTL)
	}

	codec, err := session.NewCodec(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to set up session codec: %w", err)
	}
	secure := strings.HasPrefix(cfg.AppBaseURL, "https://")

	provider, err := oauth.NewOIDCProvider(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret,
		cfg.AppBaseURL+"/auth/callback", cfg.OIDCAudience)
	if err != nil {
		return fmt.Errorf("failed to set up oidc provider: %w", err)
	}
	config.LogAudience("frontend", cfg.OIDCAudience)

	sc := syncclient.New(cfg.BackendURL)
	orch := orchestrator.New(sc)
	// Let in-flight render-time attempts finish before returning.
	defer orch.Wait()

	h := &frontend.Handler{
		Sessions:     session.NewManager(st, codec, cfg.SessionTTL, secure),
		Provider:     provider,
		Sync:         sc,
		Orchestrator: orch,
		AppBaseURL:   cfg.AppBaseURL,
		BackendURL:   cfg.BackendURL,
		Audience:     cfg.OIDCAudience,
	}
	return serve(ctx, "frontend", cfg.Port, buildFrontendRouter(h), ready)
}

// runBackend holds all resource server logic; same contract as runFrontend.
func runBackend(ctx context.Context, cfg *config.BackendConfig, ready chan<- string) error {
	var users backend.UserStore
	if cfg.DatabaseURL != "" {
		ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to set up postgres store: %w", err)
		}
		defer ps.Close()

		migrationsFS, err := fs.Sub(migrationsDir, "migrations")
		if err != nil {
			return fmt.Errorf("failed to access embedded migrations: %w", err)
		}
		n, err := ps.Migrate(ctx, migrationsFS)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("migrations complete", "applied", n)
		users = ps
	} else {
		slog.Warn("DATABASE_URL not set; users are kept in memory (development only)")
		users = store.NewMemoryUserStore()
	}

	config.LogAudience("backend", cfg.OIDCAudience)
	slog.Warn("bearer credentials are decoded without signature verification; do not expose this backend to untrusted clients")

	h := &backend.Handler{Users: users, Decoder: tokens.NewUntrustedDecoder(), Now: time.Now}
	return serve(ctx, "backend", cfg.Port, buildBackendRouter(h, cfg.CORSAllowedOrigins), ready)
}

// serve binds port, serves handler until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, name, port string, handler http.Handler, ready chan<- string) error {
	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	// Start server in a goroutine; serve() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ferry listening", "process", name, "addr", ln.Addr().String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...", "process", name)
	// Stop accepting, wait up to 30s for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped", "process", name)
	return nil
}

// baseRouter returns a chi router with the middleware both processes share.
func baseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	return r
}

// buildFrontendRouter wires all frontend routes and middleware.
// Called from runFrontend() and smoke tests.
func buildFrontendRouter(h *frontend.Handler) http.Handler {
	r := baseRouter()

	r.Get("/", h.Home)
	r.Get("/health", h.CheckHealth)
	r.Get("/auth/login", h.Login)
	r.Get("/auth/callback", h.Callback)
	r.Get("/auth/logout", h.Logout)
	r.Get("/profile", h.Profile)

	r.Get("/api/sync-user", h.SyncUser)
	r.Get("/api/auth-token", h.AuthToken)

	return r
}

// buildBackendRouter wires all backend routes and middleware.
// CORS is only mounted with explicit origins; go-chi/cors treats an empty list as "*".
func buildBackendRouter(h *backend.Handler, origins []string) http.Handler {
	r := baseRouter()
	if len(origins) > 0 {
		r.Use(backend.CORS(origins))
	}

	r.Get("/health", h.CheckHealth)

	// Authentication required routes. RequireUser reconciles the user on every call.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.RequireUser)
		r.Get("/auth/me", h.Me)
	})

	return r
}
