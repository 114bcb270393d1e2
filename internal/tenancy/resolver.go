package tenancy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"tenant-scope/internal/cache"
	"tenant-scope/internal/model"
)

var tracer = otel.Tracer("tenant-scope.internal.tenancy")

const (
	DefaultBaseDomain    = "azima.store"
	DefaultLookupTimeout = 2 * time.Second
)

// Directory is the authoritative tenant store.
type Directory interface {
	LookupBySubdomain(ctx context.Context, subdomain string) (*model.TenantRecord, error)
	LookupByDomain(ctx context.Context, domain string) (*model.TenantRecord, error)
	LookupByAPIKeyHash(ctx context.Context, hash string) (*model.TenantRecord, error)
}

// Cache is the advisory cache in front of the directory. Implementations
// swallow their own errors.
type Cache interface {
	Get(ctx context.Context, key string) (*model.CachedTenant, bool)
	Put(ctx context.Context, key string, tc *model.TenantContext, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// Recorder observes resolution outcomes. metrics.Metrics satisfies it.
type Recorder interface {
	ObserveResolution(source, outcome, kind string)
}

// Signals are the request inputs the resolver looks at.
type Signals struct {
	APIKey    string
	Subdomain string // x-tenant-subdomain override
	Host      string
}

// Options tune a Resolver. Zero values fall back to defaults.
type Options struct {
	BaseDomain    string
	CacheTTL      time.Duration
	LookupTimeout time.Duration
}

// Resolver maps request signals to a tenant. One instance is shared by all
// requests.
type Resolver struct {
	dir     Directory
	cache   Cache
	metrics Recorder
	logger  *zap.Logger

	baseDomain    string
	cacheTTL      time.Duration
	lookupTimeout time.Duration
}

func NewResolver(dir Directory, c Cache, opts Options, logger *zap.Logger, rec Recorder) *Resolver {
	if c == nil {
		c = cache.NopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseDomain == "" {
		opts.BaseDomain = DefaultBaseDomain
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	return &Resolver{
		dir:           dir,
		cache:         c,
		metrics:       rec,
		logger:        logger.Named("resolver"),
		baseDomain:    strings.ToLower(opts.BaseDomain),
		cacheTTL:      opts.CacheTTL,
		lookupTimeout: opts.LookupTimeout,
	}
}

// BaseDomain returns the configured platform domain.
func (r *Resolver) BaseDomain() string {
	return r.baseDomain
}

// HashAPIKey returns the hex SHA-256 of a raw API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Resolve runs the strategies in priority order: API key, override header,
// host subdomain, custom domain. An API key is authoritative: when present
// its result is returned whatever it is. The other strategies fall through
// only on a plain miss.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) (res Result) {
	ctx, span := tracer.Start(ctx, "tenancy.resolve")
	defer func() {
		span.SetAttributes(
			attribute.String("tenant.source", string(res.Source)),
			attribute.String("tenant.outcome", res.Outcome.String()),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		span.End()
		if r.metrics != nil {
			r.metrics.ObserveResolution(string(res.Source), res.Outcome.String(), res.Kind.String())
		}
	}()

	if key := strings.TrimSpace(sig.APIKey); key != "" {
		return r.byAPIKey(ctx, key)
	}

	res = failed(model.SourceUnknown, FailureNoSignal, "no tenant signal on request", nil)

	if sub := strings.ToLower(strings.TrimSpace(sig.Subdomain)); sub != "" {
		res = r.lookupCached(ctx, cache.MethodSubdomain, sub, model.SourceHeaderOverride, r.dir.LookupBySubdomain)
		if !isMiss(res) {
			return res
		}
	}

	host := NormalizeHost(sig.Host)
	if sub, ok := ExtractSubdomain(host, r.baseDomain); ok {
		res = r.lookupCached(ctx, cache.MethodSubdomain, sub, model.SourceSubdomain, r.dir.LookupBySubdomain)
		if !isMiss(res) {
			return res
		}
	}

	if IsCustomDomain(host, r.baseDomain) {
		res = r.lookupCached(ctx, cache.MethodDomain, host, model.SourceCustomDomain, r.dir.LookupByDomain)
	}
	return res
}

// Invalidate drops the cache entries for a tenant's subdomain and domain.
func (r *Resolver) Invalidate(ctx context.Context, subdomain, domain string) {
	var keys []string
	if subdomain != "" {
		keys = append(keys, cache.Key(cache.MethodSubdomain, strings.ToLower(subdomain)))
	}
	if domain != "" {
		keys = append(keys, cache.Key(cache.MethodDomain, NormalizeHost(domain)))
	}
	if len(keys) == 0 {
		return
	}
	r.cache.Invalidate(ctx, keys...)
	r.logger.Debug("invalidated tenant cache", zap.Strings("keys", keys))
}

func (r *Resolver) byAPIKey(ctx context.Context, key string) Result {
	rec, err := r.fetch(ctx, r.dir.LookupByAPIKeyHash, HashAPIKey(key))
	if err != nil {
		if errors.Is(err, model.ErrTenantNotFound) {
			return failed(model.SourceAPIKey, FailureInvalidAPIKey, "invalid or inactive api key", err)
		}
		return r.backendFailure(model.SourceAPIKey, err)
	}
	return r.validate(model.ContextFromRecord(rec), model.SourceAPIKey)
}

type lookupFunc func(ctx context.Context, value string) (*model.TenantRecord, error)

func (r *Resolver) lookupCached(ctx context.Context, method, value string, src model.Source, lookup lookupFunc) Result {
	key := cache.Key(method, value)

	if cached, ok := r.cacheGet(ctx, key); ok {
		r.logger.Debug("tenant cache hit", zap.String("key", key))
		return r.validate(cached.Context(), src)
	}

	rec, err := r.fetch(ctx, lookup, value)
	if err != nil {
		if errors.Is(err, model.ErrTenantNotFound) {
			return failed(src, FailureNotFound, "tenant not found", err)
		}
		return r.backendFailure(src, err)
	}

	res := r.validate(model.ContextFromRecord(rec), src)
	if res.Outcome == Resolved {
		r.cachePut(ctx, key, res.Tenant)
	}
	return res
}

func (r *Resolver) validate(tc *model.TenantContext, src model.Source) Result {
	switch tc.Status {
	case model.StatusActive:
		r.logger.Debug("resolved tenant",
			zap.String("tenant_id", tc.TenantID),
			zap.String("region_id", tc.RegionID),
			zap.String("source", string(src)))
		return resolved(tc, src)
	case model.StatusSuspended:
		r.logger.Info("suspended tenant blocked",
			zap.String("tenant_id", tc.TenantID),
			zap.String("source", string(src)))
		return suspended(tc.TenantID, src)
	default:
		r.logger.Warn("tenant not active",
			zap.String("tenant_id", tc.TenantID),
			zap.String("status", string(tc.Status)),
			zap.String("source", string(src)))
		return failed(src, FailureInvalidStatus, fmt.Sprintf("tenant status is %s", tc.Status), nil)
	}
}

func (r *Resolver) backendFailure(src model.Source, err error) Result {
	r.logger.Error("tenant directory lookup failed",
		zap.String("source", string(src)), zap.Error(err))
	return failed(src, FailureBackend, "tenant directory unavailable", err)
}

func (r *Resolver) fetch(ctx context.Context, lookup lookupFunc, value string) (*model.TenantRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return lookup(ctx, value)
}

func (r *Resolver) cacheGet(ctx context.Context, key string) (*model.CachedTenant, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return r.cache.Get(ctx, key)
}

func (r *Resolver) cachePut(ctx context.Context, key string, tc *model.TenantContext) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	r.cache.Put(ctx, key, tc, r.cacheTTL)
}

func isMiss(res Result) bool {
	return res.Outcome == Failed && res.Kind == FailureNotFound
}
