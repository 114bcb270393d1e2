// internal/model/tenant.go
package model

import (
	"errors"
	"time"
)

// ErrTenantNotFound is returned by directory lookups that match no record.
var ErrTenantNotFound = errors.New("tenant not found")

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusError        Status = "error"
	StatusDeleted      Status = "deleted"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusProvisioning, StatusActive, StatusSuspended, StatusError, StatusDeleted:
		return true
	}
	return false
}

// Source records which strategy produced a tenant context.
type Source string

const (
	SourceAPIKey         Source = "api_key"
	SourceHeaderOverride Source = "header_override"
	SourceSubdomain      Source = "subdomain"
	SourceCustomDomain   Source = "custom_domain"
	SourceAdminPrincipal Source = "admin_principal"
	SourceUnknown        Source = "unknown"
)

// TenantRecord is the authoritative row held by the tenant directory.
type TenantRecord struct {
	ID           string         `db:"id"`
	RegionID     string         `db:"region_id"`
	Subdomain    string         `db:"subdomain"`
	CustomDomain string         `db:"custom_domain"`
	BusinessName string         `db:"business_name"`
	Status       Status         `db:"status"`
	Metadata     map[string]any `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
}

// TenantContext is the request-scoped projection of a TenantRecord.
// It is never mutated once attached to a request.
type TenantContext struct {
	TenantID     string         `json:"tenant_id"`
	RegionID     string         `json:"region_id"`
	Subdomain    string         `json:"subdomain,omitempty"`
	CustomDomain string         `json:"custom_domain,omitempty"`
	BusinessName string         `json:"business_name,omitempty"`
	Status       Status         `json:"status"`
	Metadata     map[string]any `json:"metadata"`
}

// CachedTenant is the cache representation of a TenantContext. Metadata is
// deliberately not carried.
type CachedTenant struct {
	TenantID     string `json:"tenantId"`
	RegionID     string `json:"regionId"`
	Subdomain    string `json:"subdomain,omitempty"`
	CustomDomain string `json:"customDomain,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	Status       Status `json:"status"`
	CachedAt     int64  `json:"cachedAt"`
}

// ContextFromRecord projects a directory record into a tenant context.
func ContextFromRecord(rec *TenantRecord) *TenantContext {
	md := make(map[string]any, len(rec.Metadata))
	for k, v := range rec.Metadata {
		md[k] = v
	}
	return &TenantContext{
		TenantID:     rec.ID,
		RegionID:     rec.RegionID,
		Subdomain:    rec.Subdomain,
		CustomDomain: rec.CustomDomain,
		BusinessName: rec.BusinessName,
		Status:       rec.Status,
		Metadata:     md,
	}
}

// ToCached drops metadata and stamps the entry with now.
func ToCached(tc *TenantContext, now time.Time) *CachedTenant {
	return &CachedTenant{
		TenantID:     tc.TenantID,
		RegionID:     tc.RegionID,
		Subdomain:    tc.Subdomain,
		CustomDomain: tc.CustomDomain,
		BusinessName: tc.BusinessName,
		Status:       tc.Status,
		CachedAt:     now.UnixMilli(),
	}
}

// Context rebuilds a tenant context from a cache entry with empty metadata.
func (c *CachedTenant) Context() *TenantContext {
	return &TenantContext{
		TenantID:     c.TenantID,
		RegionID:     c.RegionID,
		Subdomain:    c.Subdomain,
		CustomDomain: c.CustomDomain,
		BusinessName: c.BusinessName,
		Status:       c.Status,
		Metadata:     map[string]any{},
	}
}
