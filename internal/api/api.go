package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"tenant-scope/internal/auth"
	"tenant-scope/internal/metrics"
)

// Checker is a dependency probed by the readiness endpoint.
type Checker interface {
	Ping(ctx context.Context) error
}

type API struct {
	Resolver    TenantResolver
	Validator   *auth.Validator
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Checks      map[string]Checker
	ExemptPaths []string
	Logger      *zap.Logger
}

func NewAPI(resolver TenantResolver, validator *auth.Validator, m *metrics.Metrics, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		Resolver:    resolver,
		Validator:   validator,
		Metrics:     m,
		Checks:      map[string]Checker{},
		ExemptPaths: DefaultExemptPaths,
		Logger:      logger,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(a.Logger))
	r.Use(TenantContext(a.Resolver, TenantContextOptions{
		ExemptPaths: a.ExemptPaths,
		Logger:      a.Logger,
	}))

	// Public
	r.Get("/health", a.Health)
	r.Get("/healthz", a.Health)
	r.Get("/ready", a.Ready)
	r.Handle("/metrics", metrics.Handler(a.Gatherer))
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Storefront
	r.Route("/store", func(r chi.Router) {
		r.Use(RequireTenantContext)
		r.Get("/context", a.StoreContext)
	})

	// Admin
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Middleware(a.Validator, a.Logger))
		r.Use(AdminRegionGuard(a.Logger, a.Metrics))
		r.Get("/context", a.AdminContext)
	})

	return r
}
