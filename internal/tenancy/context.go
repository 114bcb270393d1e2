package tenancy

import (
	"context"

	"tenant-scope/internal/model"
)

type ctxKey string

const (
	tenantKey ctxKey = "tenancy.tenant"
	sourceKey ctxKey = "tenancy.source"
)

// WithTenant stores the resolved tenant and the strategy that found it.
func WithTenant(ctx context.Context, tc *model.TenantContext, src model.Source) context.Context {
	ctx = context.WithValue(ctx, tenantKey, tc)
	return context.WithValue(ctx, sourceKey, src)
}

// FromContext returns the tenant attached to ctx, if any.
func FromContext(ctx context.Context) (*model.TenantContext, bool) {
	tc, ok := ctx.Value(tenantKey).(*model.TenantContext)
	return tc, ok && tc != nil
}

// SourceFromContext returns how the attached tenant was resolved.
func SourceFromContext(ctx context.Context) model.Source {
	if src, ok := ctx.Value(sourceKey).(model.Source); ok {
		return src
	}
	return model.SourceUnknown
}

// RegionIDFromContext extracts the scoping key if a tenant is attached.
func RegionIDFromContext(ctx context.Context) (string, bool) {
	tc, ok := FromContext(ctx)
	if !ok || tc.RegionID == "" {
		return "", false
	}
	return tc.RegionID, true
}

// TenantIDFromContext extracts the tenant id. Contexts synthesized from an
// admin principal have none.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	tc, ok := FromContext(ctx)
	if !ok || tc.TenantID == "" {
		return "", false
	}
	return tc.TenantID, true
}
