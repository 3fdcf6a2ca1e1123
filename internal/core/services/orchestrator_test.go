package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
	"github.com/xingh/docsray-mcp-sub001/internal/logger"
)

// mockCache implements driven.ResultCache with a plain map.
type mockCache struct {
	mu      sync.Mutex
	entries map[driven.CacheKey]*domain.Result
	puts    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[driven.CacheKey]*domain.Result)}
}

func (c *mockCache) Get(_ context.Context, key driven.CacheKey) (*domain.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	copied := *r
	return &copied, true
}

func (c *mockCache) Put(_ context.Context, key driven.CacheKey, result *domain.Result, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *result
	c.entries[key] = &copied
	c.puts++
	return nil
}

func (c *mockCache) Invalidate(_ context.Context, identity domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Identity == identity {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *mockCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[driven.CacheKey]*domain.Result)
	return nil
}

func (c *mockCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// writeTestPDF creates a minimal file that sniffs as a PDF.
func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\ntest content\n"), 0o600))
	return path
}

func newTestOrchestrator(reg *Registry, cache driven.ResultCache) *Orchestrator {
	policy := DefaultPolicy()
	policy.AttemptTimeout = 2 * time.Second
	return NewOrchestrator(reg, cache, nil, policy, logger.Nop())
}

func overviewReq(path string) driving.Request {
	return driving.Request{Path: path, Operation: domain.OpOverview}
}

func TestOrchestrator_Perform_FallbackToThirdProvider(t *testing.T) {
	first := newMockProvider("first", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps(), Perf: domain.PerfFast})
	first.err = fmt.Errorf("decode: %w", domain.ErrUnsupportedContent)
	second := newMockProvider("second", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps(), Perf: domain.PerfMedium})
	second.err = fmt.Errorf("decode: %w", domain.ErrUnsupportedContent)
	third := newMockProvider("third", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps(), Perf: domain.PerfSlow})

	reg := newTestRegistry(t, first, second, third)
	o := newTestOrchestrator(reg, newMockCache())

	result, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))
	require.NoError(t, err)

	assert.Equal(t, "third output", result.Content)
	assert.Equal(t, "third", result.Provider)
	require.Len(t, result.Fallbacks, 2)
	assert.Equal(t, "first", result.Fallbacks[0].Provider)
	assert.Equal(t, "second", result.Fallbacks[1].Provider)
	assert.Equal(t, domain.ClassPermanentDocument, result.Fallbacks[0].Class)

	// Permanent-for-document failures are not retried.
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
	assert.Equal(t, 1, third.callCount())
}

func TestOrchestrator_Perform_AllFail(t *testing.T) {
	var providers []*mockProvider
	for _, name := range []string{"one", "two", "three"} {
		p := newMockProvider(name, domain.Descriptor{
			Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
		p.err = fmt.Errorf("boom: %w", domain.ErrUnsupportedContent)
		providers = append(providers, p)
	}
	reg := newTestRegistry(t, providers...)
	o := newTestOrchestrator(reg, newMockCache())

	_, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))

	var allFailed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Len(t, allFailed.Attempts, 3)
	assert.NotEmpty(t, allFailed.RequestID)
}

func TestOrchestrator_Perform_NoProviderAvailable(t *testing.T) {
	reg := newTestRegistry(t)
	o := newTestOrchestrator(reg, newMockCache())

	_, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}

func TestOrchestrator_Perform_InvalidOperation(t *testing.T) {
	o := newTestOrchestrator(newTestRegistry(t), newMockCache())

	_, err := o.Perform(context.Background(), driving.Request{
		Path: writeTestPDF(t), Operation: "summarise"})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestOrchestrator_Perform_CacheHitSkipsInvocation(t *testing.T) {
	p := newMockProvider("alpha", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	reg := newTestRegistry(t, p)
	cache := newMockCache()
	o := newTestOrchestrator(reg, cache)
	req := overviewReq(writeTestPDF(t))

	first, err := o.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	require.Equal(t, 1, cache.size())

	second, err := o.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, 1, p.callCount())
}

func TestOrchestrator_Perform_DistinctParamsMissCache(t *testing.T) {
	p := newMockProvider("alpha", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	reg := newTestRegistry(t, p)
	o := newTestOrchestrator(reg, newMockCache())
	path := writeTestPDF(t)

	_, err := o.Perform(context.Background(), driving.Request{
		Path: path, Operation: domain.OpNavigation,
		Params: domain.Params{Query: "alpha"}})
	require.NoError(t, err)

	_, err = o.Perform(context.Background(), driving.Request{
		Path: path, Operation: domain.OpNavigation,
		Params: domain.Params{Query: "beta"}})
	require.NoError(t, err)

	assert.Equal(t, 2, p.callCount())
}

func TestOrchestrator_Perform_ExplicitOverride(t *testing.T) {
	preferred := newMockProvider("preferred", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps(), Perf: domain.PerfFast})
	requested := newMockProvider("requested", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps(), Perf: domain.PerfSlow})
	reg := newTestRegistry(t, preferred, requested)
	o := newTestOrchestrator(reg, newMockCache())

	req := overviewReq(writeTestPDF(t))
	req.Provider = "requested"

	result, err := o.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "requested", result.Provider)
	assert.Equal(t, 0, preferred.callCount())

	req.Provider = "missing"
	_, err = o.Perform(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	reg.Disable("requested")
	req.Provider = "requested"
	_, err = o.Perform(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestOrchestrator_Perform_TransientRetry(t *testing.T) {
	p := newMockProvider("flaky", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	p.err = fmt.Errorf("hiccup: %w", domain.ErrProviderTransient)
	reg := newTestRegistry(t, p)
	o := newTestOrchestrator(reg, newMockCache())

	_, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))

	var allFailed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &allFailed)
	// Retries=1 means two attempts total on the same candidate.
	assert.Equal(t, 2, p.callCount())
	require.Len(t, allFailed.Attempts, 1)
	assert.Equal(t, domain.ClassTransient, allFailed.Attempts[0].Class)
}

func TestOrchestrator_Perform_AuthFailureDisablesProvider(t *testing.T) {
	bad := newMockProvider("bad-creds", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	bad.err = fmt.Errorf("401: %w", domain.ErrProviderAuth)
	good := newMockProvider("good", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps(), Perf: domain.PerfSlow})
	reg := newTestRegistry(t, bad, good)
	o := newTestOrchestrator(reg, newMockCache())

	result, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))
	require.NoError(t, err)
	assert.Equal(t, "good", result.Provider)
	assert.Equal(t, domain.HealthDisabled, reg.Health("bad-creds"))

	// Disabled providers are no longer offered at all.
	_, err = o.Perform(context.Background(), driving.Request{
		Path: writeTestPDF(t), Operation: domain.OpOverview, Provider: "bad-creds"})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, 1, bad.callCount())
}

func TestOrchestrator_Perform_FreshInvalidatesBeforeRun(t *testing.T) {
	p := newMockProvider("alpha", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	reg := newTestRegistry(t, p)
	o := newTestOrchestrator(reg, newMockCache())
	req := overviewReq(writeTestPDF(t))

	_, err := o.Perform(context.Background(), req)
	require.NoError(t, err)

	req.Fresh = true
	result, err := o.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, p.callCount())
}

func TestOrchestrator_Perform_CancelledRequestWritesNoCacheEntry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newMockProvider("slow", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	p.fn = func(ctx context.Context) (*domain.Result, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	reg := newTestRegistry(t, p)
	cache := newMockCache()
	o := newTestOrchestrator(reg, cache)

	_, err := o.Perform(ctx, overviewReq(writeTestPDF(t)))
	require.Error(t, err)
	assert.Equal(t, 0, cache.size())
}

func TestOrchestrator_Perform_ConcurrentRequestsSingleInvocation(t *testing.T) {
	release := make(chan struct{})
	p := newMockProvider("gated", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	p.fn = func(context.Context) (*domain.Result, error) {
		<-release
		return &domain.Result{Content: "gated output"}, nil
	}
	reg := newTestRegistry(t, p)
	cache := newMockCache()
	o := newTestOrchestrator(reg, cache)
	path := writeTestPDF(t)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*domain.Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Perform(context.Background(), overviewReq(path))
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight invocation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "gated output", results[i].Content)
	}
	assert.Equal(t, 1, p.callCount())
	assert.Equal(t, 1, cache.size())
}

func TestOrchestrator_InvalidateCache(t *testing.T) {
	p := newMockProvider("alpha", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	reg := newTestRegistry(t, p)
	cache := newMockCache()
	o := newTestOrchestrator(reg, cache)
	path := writeTestPDF(t)

	_, err := o.Perform(context.Background(), overviewReq(path))
	require.NoError(t, err)
	require.Equal(t, 1, cache.size())

	require.NoError(t, o.InvalidateCache(context.Background(), path))
	assert.Equal(t, 0, cache.size())
}

func TestOrchestrator_ListProviders(t *testing.T) {
	a := newMockProvider("alpha", domain.Descriptor{Wildcard: true, Operations: allOps()})
	b := newMockProvider("beta", domain.Descriptor{Wildcard: true, Operations: allOps()})
	reg := newTestRegistry(t, a, b)
	o := newTestOrchestrator(reg, nil)

	infos := o.ListProviders(context.Background())
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, domain.HealthAvailable, infos[0].Health)
}

func TestOrchestrator_NilCacheStillServes(t *testing.T) {
	p := newMockProvider("alpha", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	reg := newTestRegistry(t, p)
	o := newTestOrchestrator(reg, nil)
	path := writeTestPDF(t)

	_, err := o.Perform(context.Background(), overviewReq(path))
	require.NoError(t, err)
	_, err = o.Perform(context.Background(), overviewReq(path))
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
	assert.NoError(t, o.ClearCache(context.Background()))
}

func TestOrchestrator_PerProviderTimeoutOverride(t *testing.T) {
	p := newMockProvider("metered", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	var remaining time.Duration
	p.fn = func(ctx context.Context) (*domain.Result, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return nil, errors.New("no attempt deadline")
		}
		remaining = time.Until(deadline)
		return &domain.Result{Content: "metered output"}, nil
	}
	reg := newTestRegistry(t, p)

	policy := DefaultPolicy()
	policy.AttemptTimeout = time.Hour
	policy.ProviderTimeouts = map[string]time.Duration{"metered": 50 * time.Millisecond}
	o := NewOrchestrator(reg, nil, nil, policy, logger.Nop())

	_, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))
	require.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 50*time.Millisecond)

	// Providers without an override keep the policy-wide timeout.
	assert.Equal(t, time.Hour, o.attemptTimeout("other"))
	assert.Equal(t, 50*time.Millisecond, o.attemptTimeout("metered"))
}

func TestOrchestrator_ThrottleBoundsInvocationRate(t *testing.T) {
	policy := DefaultPolicy()
	policy.ProviderRate = 1
	policy.ProviderBurst = 1
	o := NewOrchestrator(newTestRegistry(t), nil, nil, policy, logger.Nop())

	// The burst token is granted immediately.
	require.NoError(t, o.throttle(context.Background(), "alpha"))

	// The next token is a full second away; a short deadline cannot wait
	// it out.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, o.throttle(ctx, "alpha"))

	// Each provider gets its own limiter.
	require.NoError(t, o.throttle(context.Background(), "beta"))
}

func TestOrchestrator_ThrottleDisabledByDefault(t *testing.T) {
	o := newTestOrchestrator(newTestRegistry(t), nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, o.throttle(context.Background(), "alpha"))
	}
}

func TestOrchestrator_Perform_ThrottledSecondRequest(t *testing.T) {
	p := newMockProvider("alpha", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	reg := newTestRegistry(t, p)

	policy := DefaultPolicy()
	policy.ProviderRate = 1
	policy.ProviderBurst = 1
	o := NewOrchestrator(reg, nil, nil, policy, logger.Nop())
	path := writeTestPDF(t)

	_, err := o.Perform(context.Background(), overviewReq(path))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.Perform(ctx, overviewReq(path))
	require.Error(t, err)
	assert.Equal(t, 1, p.callCount())
}

func TestOrchestrator_UnknownClassSkipsWithoutRetry(t *testing.T) {
	p := newMockProvider("weird", domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF}, Operations: allOps()})
	p.err = errors.New("mystery failure")
	reg := newTestRegistry(t, p)
	o := newTestOrchestrator(reg, newMockCache())

	_, err := o.Perform(context.Background(), overviewReq(writeTestPDF(t)))
	var allFailed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Equal(t, 1, p.callCount())
}
