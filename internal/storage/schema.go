// internal/storage/schema.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"tenant-scope/internal/model"
)

// Schema is the directory layout written by the provisioning service.
const Schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id            UUID PRIMARY KEY,
	business_name TEXT NOT NULL DEFAULT '',
	subdomain     TEXT UNIQUE,
	region_id     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'provisioning',
	metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS domains (
	domain    TEXT PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	status    TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS api_keys (
	key_hash     TEXT PRIMARY KEY,
	tenant_id    UUID NOT NULL REFERENCES tenants(id),
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	last_used_at TIMESTAMPTZ,
	usage_count  BIGINT NOT NULL DEFAULT 0
);`

// Migrate creates the directory tables if they are missing.
func (d *Directory) Migrate(ctx context.Context) error {
	if _, err := d.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateTenant inserts a tenant row. Used for local seeding and tests; the
// provisioning service owns these writes in production.
func (d *Directory) CreateTenant(ctx context.Context, rec *model.TenantRecord) error {
	md := rec.Metadata
	if md == nil {
		md = map[string]any{}
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	var subdomain any
	if rec.Subdomain != "" {
		subdomain = rec.Subdomain
	}
	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO tenants (id, business_name, subdomain, region_id, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.BusinessName, subdomain, rec.RegionID, string(rec.Status), raw)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// AddDomain records domain ownership for a tenant.
func (d *Directory) AddDomain(ctx context.Context, tenantID, domain, status string) error {
	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO domains (domain, tenant_id, status) VALUES ($1, $2, $3)`,
		domain, tenantID, status)
	if err != nil {
		return fmt.Errorf("failed to insert domain: %w", err)
	}
	return nil
}

// AddAPIKey stores the hash of an API key for a tenant.
func (d *Directory) AddAPIKey(ctx context.Context, tenantID, keyHash string) error {
	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, tenant_id) VALUES ($1, $2)`, keyHash, tenantID)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// UpdateTenantStatus moves a tenant to a new lifecycle state.
func (d *Directory) UpdateTenantStatus(ctx context.Context, tenantID string, status model.Status) error {
	_, err := d.DB.ExecContext(ctx,
		`UPDATE tenants SET status = $1 WHERE id = $2`, string(status), tenantID)
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	return nil
}

// APIKeyUsage returns the usage counter for a key hash.
func (d *Directory) APIKeyUsage(ctx context.Context, keyHash string) (int64, error) {
	var n int64
	err := d.DB.QueryRowContext(ctx,
		`SELECT usage_count FROM api_keys WHERE key_hash = $1`, keyHash).Scan(&n)
	if err != nil {
		return 0, lookupErr("api key usage", err)
	}
	return n, nil
}
