package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backlot-hq/backlot/internal/auth"
	"github.com/backlot-hq/backlot/internal/observability"
	"github.com/backlot-hq/backlot/internal/rbac"
	"github.com/backlot-hq/backlot/internal/shared"
	"github.com/backlot-hq/backlot/internal/teams"
	"github.com/backlot-hq/backlot/internal/users"
)

// RouterParams carries everything the HTTP router needs.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	TeamsHandler *teams.Handler
	RBACHandler  *rbac.Handler
}

// NewRouter builds the chi router with the full middleware stack and
// all module routes mounted.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         p.Logger,
		Config:         p.Config,
		SessionManager: p.SessionManager,
		CSRFManager:    p.CSRFManager,
		Metrics:        p.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/auth", p.AuthHandler.MountRoutes)
	r.Route("/users", p.UsersHandler.MountRoutes)
	r.Route("/teams", p.TeamsHandler.MountRoutes)
	r.Route("/rbac", p.RBACHandler.MountRoutes)

	return r
}
