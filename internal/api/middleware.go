package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-scope/internal/auth"
	"tenant-scope/internal/model"
	"tenant-scope/internal/tenancy"
)

const (
	HeaderAPIKey          = "X-API-Key"
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
	HeaderRequestID       = "X-Request-ID"

	storePrefix = "/store"
	adminPrefix = "/admin"
)

// DefaultExemptPaths continue unscoped whatever the resolution outcome,
// except for a suspended tenant.
var DefaultExemptPaths = []string{"/health", "/healthz", "/ready", "/metrics", "/static", "/_next", "/swagger"}

// TenantResolver resolves request signals. tenancy.Resolver satisfies it.
type TenantResolver interface {
	Resolve(ctx context.Context, sig tenancy.Signals) tenancy.Result
}

type TenantContextOptions struct {
	ExemptPaths []string
	Logger      *zap.Logger
}

// TenantContext resolves the tenant for every request and attaches it.
// A suspended tenant ends the request with 403. Any other failure is
// rejected only on storefront routes, or with 500 when the directory is
// unavailable and the path is not exempt.
func TenantContext(resolver TenantResolver, opts TenantContextOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("tenant_context")
	exempt := opts.ExemptPaths
	if exempt == nil {
		exempt = DefaultExemptPaths
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(r.Context(), tenancy.Signals{
				APIKey:    r.Header.Get(HeaderAPIKey),
				Subdomain: r.Header.Get(HeaderTenantSubdomain),
				Host:      r.Host,
			})

			path := r.URL.Path
			switch res.Outcome {
			case tenancy.Resolved:
				ctx := tenancy.WithTenant(r.Context(), res.Tenant, res.Source)
				next.ServeHTTP(w, r.WithContext(ctx))
				return

			case tenancy.Suspended:
				logger.Warn("request for suspended tenant rejected",
					zap.String("tenant_id", res.TenantID),
					zap.String("source", string(res.Source)),
					zap.String("path", path),
					zap.String("request_id", RequestIDFromContext(r.Context())))
				writeError(w, http.StatusForbidden, CodeTenantSuspended)
				return
			}

			if matchesAny(path, exempt) {
				next.ServeHTTP(w, r)
				return
			}

			if res.Kind == tenancy.FailureBackend {
				logger.Error("tenant resolution unavailable",
					zap.String("source", string(res.Source)),
					zap.String("path", path),
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.Error(res.Err))
				writeError(w, http.StatusInternalServerError, CodeInternal)
				return
			}

			if !hasPrefix(path, storePrefix) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("storefront request without tenant",
				zap.String("kind", res.Kind.String()),
				zap.String("source", string(res.Source)),
				zap.String("reason", res.Reason),
				zap.String("host", r.Host),
				zap.String("path", path))

			switch res.Kind {
			case tenancy.FailureInvalidAPIKey:
				writeError(w, http.StatusUnauthorized, CodeInvalidAPIKey)
			case tenancy.FailureNotFound, tenancy.FailureInvalidStatus:
				writeError(w, http.StatusNotFound, CodeTenantNotFound)
			default:
				writeError(w, http.StatusBadRequest, CodeMissingTenantContext)
			}
		})
	}
}

// RequireTenantContext rejects requests that reached it unscoped.
func RequireTenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tenancy.FromContext(r.Context()); !ok {
			writeError(w, http.StatusBadRequest, CodeMissingTenantContext)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GuardRecorder observes guard decisions. metrics.Metrics satisfies it.
type GuardRecorder interface {
	ObserveGuard(decision string)
}

// AdminRegionGuard enforces that an admin principal scoped to a region only
// ever acts on that region. It must run after auth.Middleware.
func AdminRegionGuard(logger *zap.Logger, rec GuardRecorder) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("region_guard")
	observe := func(decision string) {
		if rec != nil {
			rec.ObserveGuard(decision)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized)
				return
			}

			region, present := principal.RegionID()
			if present && region == "" {
				logger.Error("admin principal has an unusable region claim",
					zap.String("principal_id", principal.ID),
					zap.String("path", r.URL.Path),
					zap.String("host", r.Host),
					zap.String("request_id", RequestIDFromContext(r.Context())))
				observe("reject")
				writeError(w, http.StatusForbidden, CodeCrossTenantAccess)
				return
			}
			if !present {
				logger.Warn("admin principal has no region, continuing unscoped",
					zap.String("principal_id", principal.ID),
					zap.String("path", r.URL.Path))
				observe("unscoped")
				next.ServeHTTP(w, r)
				return
			}

			tc, ok := tenancy.FromContext(r.Context())
			if !ok {
				synthesized := &model.TenantContext{
					RegionID: region,
					Status:   model.StatusActive,
					Metadata: map[string]any{},
				}
				observe("synthesized")
				ctx := tenancy.WithTenant(r.Context(), synthesized, model.SourceAdminPrincipal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if tc.RegionID != region {
				logger.Error("cross-tenant access attempt blocked",
					zap.String("principal_id", principal.ID),
					zap.String("principal_region_id", region),
					zap.String("tenant_region_id", tc.RegionID),
					zap.String("tenant_id", tc.TenantID),
					zap.String("path", r.URL.Path),
					zap.String("host", r.Host),
					zap.String("request_id", RequestIDFromContext(r.Context())))
				observe("reject")
				writeError(w, http.StatusForbidden, CodeCrossTenantAccess)
				return
			}

			observe("allow")
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestLogger.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLogger assigns a request id and logs each completed request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("host", r.Host),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if hasPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPrefix matches prefix as a whole path segment, so /storefront is not
// a /store route.
func hasPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}
