package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
	"github.com/xingh/docsray-mcp-sub001/internal/logger"
)

// Policy holds the orchestrator's tunable parameters. These are policy, not
// mechanism: all of them come from configuration.
type Policy struct {
	// Retries is how many extra attempts a transient failure earns on the
	// same candidate before moving on.
	Retries int

	// AttemptTimeout bounds a single provider invocation. Timeout is
	// treated as a transient failure.
	AttemptTimeout time.Duration

	// ProviderTimeouts overrides AttemptTimeout per provider name.
	ProviderTimeouts map[string]time.Duration

	// DefaultTTL applies to cached results when the provider's descriptor
	// declares no TTL of its own.
	DefaultTTL time.Duration

	// ProviderRate throttles invocations per provider (events/second).
	// Zero disables throttling.
	ProviderRate rate.Limit

	// ProviderBurst is the throttle burst size.
	ProviderBurst int
}

// DefaultPolicy returns the default orchestration policy.
func DefaultPolicy() Policy {
	return Policy{
		Retries:        1,
		AttemptTimeout: 30 * time.Second,
		DefaultTTL:     time.Hour,
	}
}

// Orchestrator is the selection and fallback engine behind every document
// operation. It consults the registry for ranked candidates, serves cached
// results where possible, and walks the candidate list until one provider
// succeeds or all fail.
type Orchestrator struct {
	registry *Registry
	cache    driven.ResultCache
	watcher  driven.DocumentWatcher
	policy   Policy
	log      logger.Logger

	// flight collapses concurrent identical invocations so one cache fill
	// serves all simultaneous callers.
	flight singleflight.Group

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Ensure Orchestrator implements the driving port.
var _ driving.DocumentService = (*Orchestrator)(nil)

// NewOrchestrator creates the orchestrator. cache and watcher may be nil;
// without a cache every request invokes a provider, without a watcher stale
// entries age out via TTL only.
func NewOrchestrator(
	registry *Registry,
	cache driven.ResultCache,
	watcher driven.DocumentWatcher,
	policy Policy,
	log logger.Logger,
) *Orchestrator {
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = DefaultPolicy().AttemptTimeout
	}
	if policy.DefaultTTL <= 0 {
		policy.DefaultTTL = DefaultPolicy().DefaultTTL
	}
	return &Orchestrator{
		registry: registry,
		cache:    cache,
		watcher:  watcher,
		policy:   policy,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Perform runs one document operation end to end: identity resolution,
// candidate selection, cache lookup, invocation with retry, fallback, and
// cache write-back. At most one provider invocation succeeds per request.
func (o *Orchestrator) Perform(ctx context.Context, req driving.Request) (*domain.Result, error) {
	if !req.Operation.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOperation, req.Operation)
	}

	doc, err := ResolveDocument(req.Path)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := o.log.With(
		logger.String("request_id", requestID),
		logger.String("operation", string(req.Operation)),
		logger.String("identity", shortID(doc.Identity)))

	if req.Fresh && o.cache != nil {
		if err := o.cache.Invalidate(ctx, doc.Identity); err != nil {
			log.Warn("cache invalidation failed", logger.Err(err))
		}
	}

	candidates, err := o.selectCandidates(doc, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: format=%s operation=%s",
			domain.ErrNoProviderAvailable, doc.Format, req.Operation)
	}
	log.Debug("candidates ranked", logger.Any("candidates", candidates))

	params := req.Params.Normalize()
	var attempts []domain.Attempt

	for _, name := range candidates {
		key := driven.CacheKey{
			Identity:  doc.Identity,
			Operation: req.Operation,
			Provider:  name,
			Params:    params,
		}

		if cached, ok := o.cacheGet(ctx, key); ok {
			log.Debug("cache hit", logger.String("provider", name))
			cached.FromCache = true
			cached.Fallbacks = attempts
			return cached, nil
		}

		result, retries, err := o.invokeShared(ctx, key, name, doc, req.Operation, req.Params)
		if err == nil {
			o.registry.MarkAvailable(name)
			o.watchDocument(doc)
			log.Info("operation served",
				logger.String("provider", name),
				logger.Int("fallbacks", len(attempts)))
			result.Fallbacks = attempts
			return result, nil
		}

		class := domain.Classify(err)
		attempts = append(attempts, domain.Attempt{
			Provider: name,
			Reason:   err.Error(),
			Class:    class,
			Retries:  retries,
		})
		log.Warn("provider failed",
			logger.String("provider", name),
			logger.String("class", string(class)),
			logger.Err(err))

		switch class {
		case domain.ClassPermanentProvider:
			o.registry.Disable(name)
		case domain.ClassTransient:
			o.registry.MarkTransientFailure(name)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &domain.AllProvidersFailedError{
		RequestID: requestID,
		Operation: req.Operation,
		Attempts:  attempts,
	}
}

// selectCandidates applies the explicit override when present, otherwise
// asks the registry for the ranked list.
func (o *Orchestrator) selectCandidates(doc domain.Document, req driving.Request) ([]string, error) {
	if req.Provider != "" {
		return o.registry.Override(req.Provider)
	}
	return o.registry.Candidates(doc, req.Operation), nil
}

// invokeShared funnels identical in-flight requests through singleflight so
// a concurrent burst performs a single provider invocation. A caller whose
// shared leader was cancelled retries directly rather than inheriting the
// cancellation.
func (o *Orchestrator) invokeShared(
	ctx context.Context,
	key driven.CacheKey,
	name string,
	doc domain.Document,
	op domain.Operation,
	params domain.Params,
) (*domain.Result, int, error) {
	type outcome struct {
		result  *domain.Result
		retries int
	}

	v, err, _ := o.flight.Do(key.String(), func() (any, error) {
		result, retries, err := o.invokeWithRetry(ctx, key, name, doc, op, params)
		if err != nil {
			return outcome{retries: retries}, err
		}
		return outcome{result: result, retries: retries}, nil
	})

	if err != nil {
		// Only a cancelled leader is re-run: an attempt timeout is a real
		// transient failure shared by all callers.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			result, retries, derr := o.invokeWithRetry(ctx, key, name, doc, op, params)
			return result, retries, derr
		}
		out, _ := v.(outcome)
		return nil, out.retries, err
	}

	out := v.(outcome)
	copied := *out.result
	return &copied, out.retries, nil
}

// invokeWithRetry performs one candidate's invocation with per-attempt
// timeout and bounded retry on transient failure, then writes the result
// through to the cache. A cancelled request never writes a cache entry.
func (o *Orchestrator) invokeWithRetry(
	ctx context.Context,
	key driven.CacheKey,
	name string,
	doc domain.Document,
	op domain.Operation,
	params domain.Params,
) (*domain.Result, int, error) {
	provider, ok := o.registry.Provider(name)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}

	var lastErr error
	for attempt := 0; attempt <= o.policy.Retries; attempt++ {
		if err := o.throttle(ctx, name); err != nil {
			return nil, attempt, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout(name))
		result, err := invokeOperation(attemptCtx, provider, op, doc, params)
		cancel()

		if err == nil {
			result.Provider = name
			result.Operation = op
			if result.GeneratedAt.IsZero() {
				result.GeneratedAt = time.Now()
			}
			o.cachePut(ctx, key, provider, result)
			return result, attempt, nil
		}

		lastErr = err
		if domain.Classify(err) != domain.ClassTransient || ctx.Err() != nil {
			return nil, attempt, err
		}
	}
	return nil, o.policy.Retries, lastErr
}

// cacheGet is a nil-safe cache read.
func (o *Orchestrator) cacheGet(ctx context.Context, key driven.CacheKey) (*domain.Result, bool) {
	if o.cache == nil {
		return nil, false
	}
	return o.cache.Get(ctx, key)
}

// cachePut writes a successful result through to the cache, unless the
// request was cancelled: a cancelled attempt must never leave a partial
// entry behind. The write itself runs detached from the request context.
func (o *Orchestrator) cachePut(ctx context.Context, key driven.CacheKey, provider driven.Provider, result *domain.Result) {
	if o.cache == nil || ctx.Err() != nil {
		return
	}
	ttl := provider.Capabilities().ResultTTL
	if ttl <= 0 {
		ttl = o.policy.DefaultTTL
	}
	if err := o.cache.Put(context.WithoutCancel(ctx), key, result, ttl); err != nil {
		o.log.Warn("cache write failed",
			logger.String("provider", key.Provider),
			logger.Err(err))
	}
}

// watchDocument registers the served document with the change watcher.
func (o *Orchestrator) watchDocument(doc domain.Document) {
	if o.watcher == nil {
		return
	}
	if err := o.watcher.Watch(doc.Path, doc.Identity); err != nil {
		o.log.Warn("watch registration failed",
			logger.String("path", doc.Path),
			logger.Err(err))
	}
}

// throttle waits on the provider's rate limiter when throttling is enabled.
func (o *Orchestrator) throttle(ctx context.Context, name string) error {
	if o.policy.ProviderRate <= 0 {
		return nil
	}
	o.mu.Lock()
	limiter, ok := o.limiters[name]
	if !ok {
		burst := o.policy.ProviderBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(o.policy.ProviderRate, burst)
		o.limiters[name] = limiter
	}
	o.mu.Unlock()
	return limiter.Wait(ctx)
}

// attemptTimeout resolves the per-provider timeout override.
func (o *Orchestrator) attemptTimeout(name string) time.Duration {
	if t, ok := o.policy.ProviderTimeouts[name]; ok && t > 0 {
		return t
	}
	return o.policy.AttemptTimeout
}

// ListProviders implements driving.DocumentService.
func (o *Orchestrator) ListProviders(_ context.Context) []driving.ProviderInfo {
	return o.registry.List()
}

// InvalidateCache removes cached results for the document at path.
func (o *Orchestrator) InvalidateCache(ctx context.Context, path string) error {
	if o.cache == nil {
		return nil
	}
	doc, err := ResolveDocument(path)
	if err != nil {
		return err
	}
	return o.cache.Invalidate(ctx, doc.Identity)
}

// ClearCache removes all cached results.
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	if o.cache == nil {
		return nil
	}
	return o.cache.Clear(ctx)
}

// invokeOperation dispatches to the provider method for the operation.
func invokeOperation(
	ctx context.Context,
	p driven.Provider,
	op domain.Operation,
	doc domain.Document,
	params domain.Params,
) (*domain.Result, error) {
	switch op {
	case domain.OpOverview:
		return p.Overview(ctx, doc, params)
	case domain.OpStructure:
		return p.Structure(ctx, doc, params)
	case domain.OpDeepAnalysis:
		return p.DeepAnalysis(ctx, doc, params)
	case domain.OpExtraction:
		return p.Extract(ctx, doc, params)
	case domain.OpNavigation:
		return p.Navigate(ctx, doc, params)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOperation, op)
	}
}

// shortID truncates an identity for log readability.
func shortID(id domain.Identity) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}
