// Package http assembles the coordinator's HTTP surface: a single
// run-trigger endpoint, health and readiness probes, a JWT bearer gate, and
// an embedded OpenAPI document, mirroring original_source/server.py's
// router list translated into chi idiom.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/application/coordinator"
	"github.com/coordinatorsvc/coordinator/internal/infra/secret"
)

// Runner is the coordinator.Coordinator method the HTTP layer depends on,
// declared locally so handler tests can supply a fake instead of standing
// up a real share/DB/HTTP stack.
type Runner interface {
	Run(ctx context.Context) (coordinator.Summary, error)
}

// Dependencies wires NewRouter to the rest of the composition root.
type Dependencies struct {
	Coordinator    Runner
	Secrets        *secret.Store
	Logger         *zap.Logger
	ReadinessCheck func(ctx context.Context) error
}

// NewRouter builds the full chi router: CORS, request logging, health
// probes unauthenticated, and the run-trigger endpoint behind the JWT
// bearer gate.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(CORS())

	r.Get("/api/v1/health", healthHandler)
	r.Get("/api/v1/health/ready", readyHandler(deps.ReadinessCheck))
	r.Get("/openapi.json", openAPIHandler)

	r.Group(func(protected chi.Router) {
		protected.Use(BearerAuth(deps.Secrets))
		protected.Post("/api/v1/coordinator/runs", runHandler(deps.Coordinator, deps.Logger))
	})

	return r
}
