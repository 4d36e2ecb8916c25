// Package httptransport assembles the HTTP surface: middleware chains per
// route group, public read paths, authenticated authoring paths, and the
// admin-gated moderation paths.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "hearth/internal/admin/handler"
	authhandler "hearth/internal/auth/handler"
	claimhandler "hearth/internal/claim/handler"
	jwttoken "hearth/internal/jwt_token"
	mentionhandler "hearth/internal/mention/handler"
	notehandler "hearth/internal/note/handler"
	"hearth/internal/platform/metrics"
	"hearth/internal/platform/middleware"
	"hearth/internal/ratelimit"
)

// Handlers collects every feature handler the router mounts.
type Handlers struct {
	Auth    *authhandler.Handler
	Claim   *claimhandler.Handler
	Mention *mentionhandler.Handler
	Note    *notehandler.Handler
	Admin   *adminhandler.Handler
}

// Deps carries the cross-cutting pieces the middleware chain needs.
type Deps struct {
	Tokens       *jwttoken.JWTService
	ClaimLimiter *ratelimit.Limiter
	Auditor      ratelimit.Auditor
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// validatorAdapter narrows jwttoken claims to the middleware's view.
type validatorAdapter struct {
	tokens *jwttoken.JWTService
}

func (a validatorAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		ContributorID: claims.ContributorID,
		Admin:         claims.Admin,
	}, nil
}

// NewRouter builds the full route tree.
func NewRouter(h Handlers, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	requireAuth := middleware.RequireAuth(validatorAdapter{d.Tokens}, d.Logger)
	requireAdmin := middleware.RequireAdmin(d.Logger)

	// Anonymous surface. The claim endpoint carries the rate limiter; the
	// note read path resolves the viewer from the token when one is present
	// but never requires it.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(d.Metrics, "claim"))
		r.Use(ratelimit.Middleware(d.ClaimLimiter, d.Auditor, d.Metrics, d.Logger))
		h.Claim.PublicRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Latency(d.Metrics, "notes"))
		r.Use(middleware.OptionalAuth(validatorAdapter{d.Tokens}))
		h.Note.PublicRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(d.Metrics, "auth"))
		h.Auth.Routes(r)
	})

	// Contributor surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(requireAuth)
		r.Use(middleware.Latency(d.Metrics, "authoring"))
		h.Claim.ContributorRoutes(r)
		h.Note.ContributorRoutes(r)
		h.Mention.Routes(r)
	})

	// Moderation surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(requireAuth)
		r.Use(requireAdmin)
		r.Use(middleware.Latency(d.Metrics, "admin"))
		h.Admin.Routes(r)
	})

	return r
}
