package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/config"
	"github.com/foliumhq/folium/internal/database"
	"github.com/foliumhq/folium/internal/handlers"
	"github.com/foliumhq/folium/internal/middleware"

	pkghttp "github.com/foliumhq/folium/pkg/http"
)

// Dependencies carries everything the router needs wired up.
type Dependencies struct {
	Config       *config.Config
	DB           *database.DB
	Logger       *slog.Logger
	TokenManager *auth.TokenManager
	AuthHandler  *handlers.AuthHandler
	TwoFactor    *handlers.TwoFactorHandler
}

// New assembles the router. Ambient middleware applies to everything; the
// login endpoints additionally get a per-IP rate limit, and the enrollment
// endpoints sit behind the session middleware.
func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: deps.Config.Server.Env}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(deps.Config.Server.AllowedOrigins)))

	r.Get("/health", healthHandler(deps.DB))

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.DefaultLoginRateLimit()))
			r.Post("/login", deps.AuthHandler.Login)
			r.Post("/login/verify-2fa", deps.AuthHandler.VerifyTwoFactor)
			r.Post("/register", deps.AuthHandler.Register)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.TokenManager))
			r.Get("/me", deps.AuthHandler.Me)
			r.Post("/2fa/setup", deps.TwoFactor.Setup)
			r.Post("/2fa/activate", deps.TwoFactor.Activate)
			r.Post("/2fa/disable", deps.TwoFactor.Disable)
		})
	})

	return r
}

func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, pkghttp.ErrorResponse{
				Error:   "UNHEALTHY",
				Message: "database unreachable",
			})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
