package tenancy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tenant-scope/internal/cache"
	"tenant-scope/internal/model"
)

type fakeDirectory struct {
	mu        sync.Mutex
	bySub     map[string]*model.TenantRecord
	byDomain  map[string]*model.TenantRecord
	byKeyHash map[string]*model.TenantRecord
	err       error
	delay     time.Duration
	calls     map[string]int
	keyUsage  map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		bySub:     map[string]*model.TenantRecord{},
		byDomain:  map[string]*model.TenantRecord{},
		byKeyHash: map[string]*model.TenantRecord{},
		calls:     map[string]int{},
		keyUsage:  map[string]int{},
	}
}

func (f *fakeDirectory) add(rec *model.TenantRecord, apiKey string) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	if rec.Subdomain != "" {
		f.bySub[rec.Subdomain] = rec
	}
	if rec.CustomDomain != "" {
		f.byDomain[rec.CustomDomain] = rec
	}
	if apiKey != "" {
		f.byKeyHash[HashAPIKey(apiKey)] = rec
	}
}

func (f *fakeDirectory) lookup(ctx context.Context, method string, m map[string]*model.TenantRecord, v string) (*model.TenantRecord, error) {
	f.mu.Lock()
	f.calls[method]++
	delay, err := f.delay, f.err
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	rec, ok := m[v]
	if !ok {
		return nil, model.ErrTenantNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeDirectory) LookupBySubdomain(ctx context.Context, sub string) (*model.TenantRecord, error) {
	return f.lookup(ctx, "subdomain", f.bySub, sub)
}

func (f *fakeDirectory) LookupByDomain(ctx context.Context, domain string) (*model.TenantRecord, error) {
	return f.lookup(ctx, "domain", f.byDomain, domain)
}

func (f *fakeDirectory) LookupByAPIKeyHash(ctx context.Context, hash string) (*model.TenantRecord, error) {
	rec, err := f.lookup(ctx, "api_key", f.byKeyHash, hash)
	if err == nil {
		f.mu.Lock()
		f.keyUsage[hash]++
		f.mu.Unlock()
	}
	return rec, err
}

func (f *fakeDirectory) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

type resolutionRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *resolutionRecorder) ObserveResolution(source, outcome, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, source+"/"+outcome+"/"+kind)
}

type fixture struct {
	dir      *fakeDirectory
	mr       *miniredis.Miniredis
	resolver *Resolver
	metrics  *resolutionRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dir := newFakeDirectory()
	dir.add(&model.TenantRecord{
		ID: "t-john", RegionID: "reg_42", Subdomain: "johns-store",
		BusinessName: "John's Store", Status: model.StatusActive,
		Metadata: map[string]any{"plan": "pro"},
	}, "key-john")
	dir.add(&model.TenantRecord{
		ID: "t-sus", RegionID: "reg_7", Subdomain: "sus",
		CustomDomain: "sus.example.com", Status: model.StatusSuspended,
	}, "key-sus")
	dir.add(&model.TenantRecord{
		ID: "t-new", RegionID: "reg_8", Subdomain: "fresh", Status: model.StatusProvisioning,
	}, "")
	dir.add(&model.TenantRecord{
		ID: "t-shop", RegionID: "reg_9", CustomDomain: "shop.example.com", Status: model.StatusActive,
	}, "")

	rec := &resolutionRecorder{}
	r := NewResolver(dir, cache.NewRedisCache(client, zap.NewNop(), nil),
		Options{BaseDomain: "azima.store", LookupTimeout: 200 * time.Millisecond},
		zap.NewNop(), rec)
	return &fixture{dir: dir, mr: mr, resolver: r, metrics: rec}
}

func TestResolve_SubdomainFromHost(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Host: "johns-store.azima.store"})

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, model.SourceSubdomain, res.Source)
	assert.Equal(t, "t-john", res.Tenant.TenantID)
	assert.Equal(t, "reg_42", res.Tenant.RegionID)
	assert.Equal(t, "pro", res.Tenant.Metadata["plan"])
	assert.Equal(t, FailureNone, res.Kind)
	assert.Equal(t, []string{"subdomain/resolved/none"}, f.metrics.seen)
}

func TestResolve_HostWithPortAndCase(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Host: "Johns-Store.AZIMA.store:8443"})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, "t-john", res.Tenant.TenantID)
}

func TestResolve_CustomDomain(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Host: "shop.example.com"})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, model.SourceCustomDomain, res.Source)
	assert.Equal(t, "reg_9", res.Tenant.RegionID)
	assert.Equal(t, 0, f.dir.callCount("subdomain"))
}

func TestResolve_NoSignal(t *testing.T) {
	f := newFixture(t)

	for _, host := range []string{"", "azima.store", "localhost:3000", "127.0.0.1", "10.1.2.3:80"} {
		res := f.resolver.Resolve(context.Background(), Signals{Host: host})
		assert.Equal(t, Failed, res.Outcome, host)
		assert.Equal(t, FailureNoSignal, res.Kind, host)
		assert.Equal(t, model.SourceUnknown, res.Source, host)
	}
	assert.Equal(t, 0, f.dir.callCount("subdomain"))
	assert.Equal(t, 0, f.dir.callCount("domain"))
}

func TestResolve_UnknownSubdomainIsNotFound(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Host: "ghost.azima.store"})
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, FailureNotFound, res.Kind)
	assert.Equal(t, model.SourceSubdomain, res.Source)
	assert.ErrorIs(t, res.Err, model.ErrTenantNotFound)
}

func TestResolve_APIKeyTakesPriority(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{
		APIKey:    "key-john",
		Subdomain: "sus",
		Host:      "shop.example.com",
	})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, model.SourceAPIKey, res.Source)
	assert.Equal(t, "t-john", res.Tenant.TenantID)
	assert.Equal(t, 0, f.dir.callCount("subdomain"))
	assert.Equal(t, 0, f.dir.callCount("domain"))
}

func TestResolve_InvalidAPIKeyDoesNotFallThrough(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{
		APIKey: "wrong",
		Host:   "johns-store.azima.store",
	})
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, FailureInvalidAPIKey, res.Kind)
	assert.Equal(t, model.SourceAPIKey, res.Source)
	assert.Equal(t, 0, f.dir.callCount("subdomain"))
}

func TestResolve_APIKeyIsNotCached(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		res := f.resolver.Resolve(context.Background(), Signals{APIKey: "key-john"})
		require.Equal(t, Resolved, res.Outcome)
	}
	assert.Equal(t, 2, f.dir.callCount("api_key"))
	assert.Empty(t, f.mr.Keys())
}

func TestResolve_SuspendedViaEveryMethod(t *testing.T) {
	cases := []struct {
		name string
		sig  Signals
		src  model.Source
	}{
		{"api key", Signals{APIKey: "key-sus"}, model.SourceAPIKey},
		{"override", Signals{Subdomain: "sus"}, model.SourceHeaderOverride},
		{"subdomain", Signals{Host: "sus.azima.store"}, model.SourceSubdomain},
		{"custom domain", Signals{Host: "sus.example.com"}, model.SourceCustomDomain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.resolver.Resolve(context.Background(), tc.sig)
			assert.Equal(t, Suspended, res.Outcome)
			assert.Equal(t, tc.src, res.Source)
			assert.Equal(t, "t-sus", res.TenantID)
			assert.Nil(t, res.Tenant)
			assert.Empty(t, f.mr.Keys(), "suspended tenants are never cached")
		})
	}
}

func TestResolve_SuspendedAPIKeyStillRecordsUsage(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{APIKey: "key-sus"})
	require.Equal(t, Suspended, res.Outcome)
	assert.Equal(t, 1, f.dir.keyUsage[HashAPIKey("key-sus")])
}

func TestResolve_InvalidStatusStopsChain(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Subdomain: "fresh", Host: "johns-store.azima.store"})
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, FailureInvalidStatus, res.Kind)
	assert.Equal(t, model.SourceHeaderOverride, res.Source)
	assert.Contains(t, res.Reason, "provisioning")
	assert.Equal(t, 1, f.dir.callCount("subdomain"))
}

func TestResolve_OverrideFallsThroughOnMiss(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Subdomain: "ghost", Host: "johns-store.azima.store"})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, model.SourceSubdomain, res.Source)
	assert.Equal(t, "t-john", res.Tenant.TenantID)
}

func TestResolve_OverrideWins(t *testing.T) {
	f := newFixture(t)

	res := f.resolver.Resolve(context.Background(), Signals{Subdomain: " Johns-Store ", Host: "shop.example.com"})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, model.SourceHeaderOverride, res.Source)
	assert.Equal(t, 0, f.dir.callCount("domain"))
}

func TestResolve_BackendErrorIsNotNotFound(t *testing.T) {
	f := newFixture(t)
	f.dir.err = errors.New("connection reset")

	res := f.resolver.Resolve(context.Background(), Signals{Subdomain: "johns-store", Host: "shop.example.com"})
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, FailureBackend, res.Kind)
	assert.Equal(t, model.SourceHeaderOverride, res.Source)
	assert.Error(t, res.Err)
	assert.Equal(t, 0, f.dir.callCount("domain"), "backend failure must not fall through")

	res = f.resolver.Resolve(context.Background(), Signals{APIKey: "key-john"})
	assert.Equal(t, FailureBackend, res.Kind)
}

func TestResolve_LookupTimeout(t *testing.T) {
	f := newFixture(t)
	f.dir.delay = time.Second

	start := time.Now()
	res := f.resolver.Resolve(context.Background(), Signals{Host: "johns-store.azima.store"})
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, FailureBackend, res.Kind)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestResolve_CachePopulatedOnMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	require.Equal(t, Resolved, first.Outcome)
	require.True(t, f.mr.Exists("tenant:subdomain:johns-store"))
	assert.Equal(t, 300*time.Second, f.mr.TTL("tenant:subdomain:johns-store"))

	second := f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	require.Equal(t, Resolved, second.Outcome)
	assert.Equal(t, 1, f.dir.callCount("subdomain"))

	// core fields match between miss and hit; metadata does not survive the cache
	assert.Equal(t, first.Tenant.TenantID, second.Tenant.TenantID)
	assert.Equal(t, first.Tenant.RegionID, second.Tenant.RegionID)
	assert.Equal(t, first.Tenant.Subdomain, second.Tenant.Subdomain)
	assert.Equal(t, first.Tenant.BusinessName, second.Tenant.BusinessName)
	assert.Equal(t, first.Tenant.Status, second.Tenant.Status)
	assert.Equal(t, first.Source, second.Source)
	assert.Empty(t, second.Tenant.Metadata)
}

func TestResolve_OverrideSharesSubdomainCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	res := f.resolver.Resolve(ctx, Signals{Subdomain: "johns-store"})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, model.SourceHeaderOverride, res.Source)
	assert.Equal(t, 1, f.dir.callCount("subdomain"))
}

func TestResolve_StaleCacheUntilTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, Resolved, f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"}).Outcome)

	f.dir.bySub["johns-store"].Status = model.StatusSuspended

	res := f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	assert.Equal(t, Resolved, res.Outcome, "cached entry is served until it expires")

	f.mr.FastForward(301 * time.Second)
	res = f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	assert.Equal(t, Suspended, res.Outcome)
}

func TestResolve_CachedSuspendedEntryIsHonored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: f.mr.Addr()}), zap.NewNop(), nil)
	c.Put(ctx, cache.Key(cache.MethodSubdomain, "johns-store"), &model.TenantContext{
		TenantID: "t-john", RegionID: "reg_42", Status: model.StatusSuspended,
	}, time.Minute)

	res := f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	assert.Equal(t, Suspended, res.Outcome)
	assert.Equal(t, 0, f.dir.callCount("subdomain"))
}

func TestResolve_UnusableCacheEntryFallsBackToDirectory(t *testing.T) {
	for _, raw := range []string{"null", "{}", `{"tenantId":"t-john","regionId":"reg_42"}`} {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.mr.Set("tenant:subdomain:johns-store", raw))

		res := f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
		require.Equal(t, Resolved, res.Outcome, "cached value %s", raw)
		assert.Equal(t, "reg_42", res.Tenant.RegionID)
		assert.Equal(t, 1, f.dir.callCount("subdomain"))
	}
}

func TestResolve_CacheDownFallsBackToDirectory(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	res := f.resolver.Resolve(context.Background(), Signals{Host: "johns-store.azima.store"})
	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, 1, f.dir.callCount("subdomain"))
}

func TestResolve_NilCache(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(&model.TenantRecord{ID: "t-1", RegionID: "r", Subdomain: "a", Status: model.StatusActive}, "")
	r := NewResolver(dir, nil, Options{}, nil, nil)

	assert.Equal(t, DefaultBaseDomain, r.BaseDomain())
	for i := 0; i < 2; i++ {
		res := r.Resolve(context.Background(), Signals{Host: "a.azima.store"})
		require.Equal(t, Resolved, res.Outcome)
	}
	assert.Equal(t, 2, dir.callCount("subdomain"))
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	f.resolver.Resolve(ctx, Signals{Host: "shop.example.com"})
	require.Len(t, f.mr.Keys(), 2)

	f.resolver.Invalidate(ctx, "Johns-Store", "")
	assert.False(t, f.mr.Exists("tenant:subdomain:johns-store"))
	assert.True(t, f.mr.Exists("tenant:domain:shop.example.com"))

	f.resolver.Invalidate(ctx, "", "SHOP.example.com:443")
	assert.Empty(t, f.mr.Keys())

	assert.NotPanics(t, func() { f.resolver.Invalidate(ctx, "", "") })

	f.resolver.Resolve(ctx, Signals{Host: "johns-store.azima.store"})
	assert.Equal(t, 2, f.dir.callCount("subdomain"))
}
