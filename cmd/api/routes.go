// AngelaMos | 2026
// routes.go

package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/go-auth-api/internal/admin"
	"github.com/carterperez-dev/templates/go-auth-api/internal/auth"
	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/health"
	"github.com/carterperez-dev/templates/go-auth-api/internal/middleware"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

type routeDeps struct {
	logger *slog.Logger
	redis  *core.Redis
	health *health.Handler
	jwt    *auth.JWTManager
	authz  middleware.Authorizer
	auth   *auth.Handler
	user   *user.Handler
	admin  *admin.Handler
}

// mountRoutes installs the global middleware chain, the health and JWKS routes
// and everything under /api. Credential endpoints get a tighter per-endpoint
// limit on top of the global per-IP one.
func mountRoutes(router chi.Router, cfg *config.Config, d routeDeps) {
	var rdb *redis.Client
	if d.redis != nil {
		rdb = d.redis.Client
	}

	globalLimiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Limit:    middleware.PerWindow(cfg.RateLimit.Window, cfg.RateLimit.Requests, cfg.RateLimit.Burst),
		FailOpen: true,
	})
	credentialLimiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Limit:    middleware.PerMinute(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthBurst),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	})

	router.Use(
		middleware.RequestID,
		middleware.Logger(d.logger),
		middleware.Recoverer,
		globalLimiter.Handler,
		middleware.SecurityHeaders(cfg.App.IsProduction()),
		middleware.CORS(cfg.CORS),
	)

	d.health.RegisterRoutes(router)
	router.Get("/.well-known/jwks.json", d.jwt.JWKSHandler())

	authenticator := middleware.Authenticator(d.authz, cfg.Auth.Scheme)
	optionalAuth := middleware.OptionalAuth(d.authz, cfg.Auth.Scheme)
	adminOnly := middleware.RequireRole(user.RoleAdmin, user.RoleSuperAdmin)

	router.Route("/api", func(r chi.Router) {
		d.auth.RegisterRoutes(r, authenticator, credentialLimiter.Handler)
		d.user.RegisterRoutes(r, authenticator, optionalAuth)
		d.admin.RegisterRoutes(r, authenticator, adminOnly)
	})
}
