// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"tenant-scope/internal/model"
)

// Directory performs authoritative tenant lookups against the SaaS database.
// Stored values are matched case-sensitively; callers normalize first.
type Directory struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewDirectory(dsn string, logger *zap.Logger) (*Directory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return NewDirectoryFromDB(db, logger), nil
}

// NewDirectoryFromDB wraps an existing handle.
func NewDirectoryFromDB(db *sql.DB, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{DB: db, logger: logger.Named("directory")}
}

// tenantColumns selects a tenant row through table reference t, including
// its first active custom domain.
func tenantColumns(t string) string {
	return t + `.id, ` + t + `.business_name, COALESCE(` + t + `.subdomain, ''), ` +
		t + `.region_id, ` + t + `.status, ` + t + `.metadata, ` +
		`COALESCE((SELECT d.domain FROM domains d WHERE d.tenant_id = ` + t +
		`.id AND d.status = 'active' ORDER BY d.domain LIMIT 1), '')`
}

// LookupBySubdomain returns the tenant owning subdomain.
func (d *Directory) LookupBySubdomain(ctx context.Context, subdomain string) (*model.TenantRecord, error) {
	row := d.DB.QueryRowContext(ctx,
		`SELECT `+tenantColumns("tenants")+` FROM tenants WHERE subdomain = $1`, subdomain)
	rec, err := scanTenant(row)
	if err != nil {
		return nil, lookupErr("subdomain", err)
	}
	return rec, nil
}

// LookupByDomain resolves an active custom domain to its owning tenant.
func (d *Directory) LookupByDomain(ctx context.Context, domain string) (*model.TenantRecord, error) {
	var tenantID string
	err := d.DB.QueryRowContext(ctx,
		`SELECT tenant_id FROM domains WHERE domain = $1 AND status = 'active'`, domain).Scan(&tenantID)
	if err != nil {
		return nil, lookupErr("domain", err)
	}

	rec, err := d.lookupByID(ctx, tenantID)
	if err != nil {
		return nil, lookupErr("domain tenant", err)
	}
	// the matched domain wins over the tenant's first active one
	rec.CustomDomain = domain
	return rec, nil
}

// LookupByAPIKeyHash resolves an active API key to its tenant and records
// usage. The usage write is best-effort and happens whatever the tenant's
// status is.
func (d *Directory) LookupByAPIKeyHash(ctx context.Context, hash string) (*model.TenantRecord, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT `+tenantColumns("t")+`
		FROM api_keys k
		JOIN tenants t ON t.id = k.tenant_id
		WHERE k.key_hash = $1 AND k.is_active = TRUE`, hash)
	rec, err := scanTenant(row)
	if err != nil {
		return nil, lookupErr("api key", err)
	}

	if err := d.RecordAPIKeyUsage(ctx, hash); err != nil {
		d.logger.Warn("failed to record api key usage",
			zap.String("tenant_id", rec.ID), zap.Error(err))
	}
	return rec, nil
}

// RecordAPIKeyUsage bumps last_used_at and usage_count in a single statement.
func (d *Directory) RecordAPIKeyUsage(ctx context.Context, hash string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE api_keys
		SET last_used_at = NOW(), usage_count = usage_count + 1
		WHERE key_hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("failed to update api key usage: %w", err)
	}
	return nil
}

func (d *Directory) lookupByID(ctx context.Context, id string) (*model.TenantRecord, error) {
	row := d.DB.QueryRowContext(ctx,
		`SELECT `+tenantColumns("tenants")+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// Ping checks the connection for readiness probes.
func (d *Directory) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

func (d *Directory) Close() error {
	return d.DB.Close()
}

func scanTenant(row *sql.Row) (*model.TenantRecord, error) {
	var (
		rec      model.TenantRecord
		status   string
		metadata []byte
	)
	if err := row.Scan(&rec.ID, &rec.BusinessName, &rec.Subdomain, &rec.RegionID, &status, &metadata, &rec.CustomDomain); err != nil {
		return nil, err
	}
	rec.Status = model.Status(status)
	rec.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode tenant metadata: %w", err)
		}
	}
	return &rec, nil
}

func lookupErr(method string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrTenantNotFound
	}
	return fmt.Errorf("%s lookup failed: %w", method, err)
}
