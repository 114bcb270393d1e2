package tenancy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"tenant-scope/internal/model"
)

// ErrInvalidRegion is returned when a region is missing or outside the
// tenant's scope.
var ErrInvalidRegion = errors.New("invalid region")

// FilterOptions adjusts RegionFilter.
type FilterOptions struct {
	RequireRegion  bool
	AllowedRegions []string
}

// RegionFilter returns the query filter downstream handlers must apply.
// Without a tenant the filter is empty unless RequireRegion is set.
func RegionFilter(ctx context.Context, opts FilterOptions) (map[string]any, error) {
	region, ok := RegionIDFromContext(ctx)
	if !ok {
		if opts.RequireRegion {
			return nil, fmt.Errorf("%w: missing", ErrInvalidRegion)
		}
		return map[string]any{}, nil
	}
	if len(opts.AllowedRegions) > 0 && !slices.Contains(opts.AllowedRegions, region) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegion, region)
	}
	return map[string]any{"region_id": region}, nil
}

// ScopeToRegion overwrites filter["region_id"] with the tenant's region so a
// caller-supplied region can never widen the query.
func ScopeToRegion(ctx context.Context, filter map[string]any) map[string]any {
	if filter == nil {
		filter = map[string]any{}
	}
	if region, ok := RegionIDFromContext(ctx); ok {
		filter["region_id"] = region
	}
	return filter
}

// ValidateRegionAccess reports whether region matches the attached tenant.
// Requests without a tenant are not restricted here.
func ValidateRegionAccess(ctx context.Context, region string) bool {
	tenantRegion, ok := RegionIDFromContext(ctx)
	if !ok {
		return true
	}
	return tenantRegion == region
}

// ValidateEntitiesRegion checks that every entity region is empty or the
// tenant's region.
func ValidateEntitiesRegion(ctx context.Context, regions []string) error {
	tenantRegion, ok := RegionIDFromContext(ctx)
	if !ok {
		return nil
	}
	for _, r := range regions {
		if r != "" && r != tenantRegion {
			return fmt.Errorf("%w: entity region mismatch", ErrInvalidRegion)
		}
	}
	return nil
}

// HasTenantContext reports whether an active tenant with a region is attached.
func HasTenantContext(ctx context.Context) bool {
	tc, ok := FromContext(ctx)
	return ok && tc.RegionID != "" && tc.Status == model.StatusActive
}

// SafeRegionID returns the region only for an active attached tenant.
func SafeRegionID(ctx context.Context) (string, bool) {
	if !HasTenantContext(ctx) {
		return "", false
	}
	tc, _ := FromContext(ctx)
	return tc.RegionID, true
}

// CanAccessRegion reports whether a principal scoped to principalRegion may
// touch region. An empty principal region is unrestricted.
func CanAccessRegion(principalRegion, region string) bool {
	return principalRegion == "" || principalRegion == region
}
