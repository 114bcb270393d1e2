package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"tenant-scope/internal/auth"
	"tenant-scope/internal/model"
	"tenant-scope/internal/tenancy"
)

const readyTimeout = 2 * time.Second

// ContextResponse describes the tenant scope a request runs under.
type ContextResponse struct {
	Tenant      *model.TenantContext `json:"tenant"`
	Source      model.Source         `json:"source"`
	Scoped      bool                 `json:"scoped"`
	Filter      map[string]any       `json:"filter"`
	PrincipalID string               `json:"principal_id,omitempty"`
}

// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Summary Readiness probe
// @Description Pings the tenant directory and cache.
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(a.Checks))
	for name := range a.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	body := map[string]string{}
	for _, name := range names {
		if err := a.Checks[name].Ping(ctx); err != nil {
			a.Logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			body[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	writeJSON(w, status, body)
}

// @Summary Current storefront tenant
// @Description Returns the tenant resolved for this request and the region filter storefront queries must apply.
// @Tags Store
// @Produce json
// @Param X-API-Key header string false "Tenant API key"
// @Param X-Tenant-Subdomain header string false "Subdomain override"
// @Success 200 {object} ContextResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /store/context [get]
func (a *API) StoreContext(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenancy.FromContext(r.Context())
	filter, err := tenancy.RegionFilter(r.Context(), tenancy.FilterOptions{RequireRegion: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingTenantContext)
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{
		Tenant: tc,
		Source: tenancy.SourceFromContext(r.Context()),
		Scoped: true,
		Filter: filter,
	})
}

// @Summary Current admin scope
// @Description Returns the region an admin request is confined to, if any.
// @Tags Admin
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} ContextResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/context [get]
func (a *API) AdminContext(w http.ResponseWriter, r *http.Request) {
	resp := ContextResponse{Source: model.SourceUnknown, Filter: map[string]any{}}
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		resp.PrincipalID = p.ID
	}
	if tc, ok := tenancy.FromContext(r.Context()); ok {
		resp.Tenant = tc
		resp.Source = tenancy.SourceFromContext(r.Context())
		resp.Scoped = true
		resp.Filter = tenancy.ScopeToRegion(r.Context(), nil)
	}
	writeJSON(w, http.StatusOK, resp)
}
