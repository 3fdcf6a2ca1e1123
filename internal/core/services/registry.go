package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
	"github.com/xingh/docsray-mcp-sub001/internal/logger"
)

// BreakerPolicy configures the soft circuit breaker.
type BreakerPolicy struct {
	// DegradeThreshold is the transient-failure count that marks a
	// provider degraded.
	DegradeThreshold int

	// Cooldown is how long a provider stays degraded before its failure
	// count resets and it is offered normally again.
	Cooldown time.Duration
}

// DefaultBreakerPolicy returns the default circuit-breaker settings.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{DegradeThreshold: 3, Cooldown: 5 * time.Minute}
}

// record holds one registered provider with its registry-owned health state.
// The descriptor is snapshotted at registration and never mutated; health is
// the only mutable field and is guarded by mu.
type record struct {
	provider driven.Provider
	desc     domain.Descriptor
	index    int // registration order, the final tie-breaker

	mu                sync.Mutex
	state             domain.HealthState
	transientFailures int
	degradedAt        time.Time
}

// Registry maintains the set of registered providers and ranks them for a
// request. The provider set is immutable after startup registration;
// Candidates and Override are safe for unlocked concurrent reads apart from
// the per-record health state.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string

	policy BreakerPolicy
	now    func() time.Time
	log    logger.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(policy BreakerPolicy, log logger.Logger) *Registry {
	if policy.DegradeThreshold <= 0 {
		policy.DegradeThreshold = DefaultBreakerPolicy().DegradeThreshold
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = DefaultBreakerPolicy().Cooldown
	}
	return &Registry{
		records: make(map[string]*record),
		policy:  policy,
		now:     time.Now,
		log:     log,
	}
}

// Register adds a provider keyed by its unique name.
// Returns ErrDuplicateProvider if the name is taken.
func (r *Registry) Register(p driven.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.records[name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProvider, name)
	}

	r.records[name] = &record{
		provider: p,
		desc:     p.Capabilities(),
		index:    len(r.order),
		state:    domain.HealthAvailable,
	}
	r.order = append(r.order, name)
	r.log.Info("provider registered",
		logger.String("provider", name),
		logger.String("perf", string(p.Capabilities().Perf)))
	return nil
}

// Provider returns the adapter for a registered name.
func (r *Registry) Provider(name string) (driven.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return nil, false
	}
	return rec.provider, true
}

// Candidates filters and ranks providers for the document and operation.
// Disabled providers, providers that do not support the document's format,
// and providers that do not support the operation are excluded. Survivors
// are ordered by descending score with deterministic tie-breaking. An empty
// slice (not an error) means no provider qualifies.
func (r *Registry) Candidates(doc domain.Document, op domain.Operation) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		name     string
		score    int
		perfRank int
		index    int
	}

	var survivors []scored
	for _, name := range r.order {
		rec := r.records[name]
		state := rec.health(r.now(), r.policy)
		if state == domain.HealthDisabled {
			continue
		}
		if !rec.desc.SupportsFormat(doc.Format) || !rec.desc.SupportsOperation(op) {
			continue
		}
		if !rec.provider.CanProcess(doc) {
			continue
		}
		s := score(rec.desc, doc, op)
		if state == domain.HealthDegraded {
			s -= degradedPenalty
		}
		survivors = append(survivors, scored{
			name:     name,
			score:    s,
			perfRank: rec.desc.Perf.Rank(),
			index:    rec.index,
		})
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		if survivors[i].perfRank != survivors[j].perfRank {
			return survivors[i].perfRank < survivors[j].perfRank
		}
		return survivors[i].index < survivors[j].index
	})

	names := make([]string, len(survivors))
	for i, s := range survivors {
		names[i] = s.name
	}
	return names
}

// Override resolves an explicitly requested provider, bypassing scoring.
// Returns ErrProviderNotFound for unregistered names and
// ErrProviderUnavailable for disabled ones.
func (r *Registry) Override(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	if rec.health(r.now(), r.policy) == domain.HealthDisabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, name)
	}
	return []string{name}, nil
}

// Health returns the current health state for a registered provider.
func (r *Registry) Health(name string) domain.HealthState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return domain.HealthDisabled
	}
	return rec.health(r.now(), r.policy)
}

// MarkAvailable records a successful invocation: the failure count resets
// and a degraded provider recovers immediately. Disabled providers stay
// disabled.
func (r *Registry) MarkAvailable(name string) {
	rec := r.lookup(name)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state == domain.HealthDisabled {
		return
	}
	rec.state = domain.HealthAvailable
	rec.transientFailures = 0
}

// MarkTransientFailure counts a transient failure against the provider and
// trips the soft circuit breaker at the configured threshold. Returns true
// when the call transitioned the provider to degraded.
func (r *Registry) MarkTransientFailure(name string) bool {
	rec := r.lookup(name)
	if rec == nil {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state == domain.HealthDisabled {
		return false
	}
	rec.transientFailures++
	if rec.state == domain.HealthAvailable && rec.transientFailures >= r.policy.DegradeThreshold {
		rec.state = domain.HealthDegraded
		rec.degradedAt = r.now()
		r.log.Warn("provider degraded",
			logger.String("provider", name),
			logger.Int("transient_failures", rec.transientFailures))
		return true
	}
	return false
}

// Disable removes the provider from candidacy for the rest of the process,
// e.g. after an authentication failure or via configuration.
func (r *Registry) Disable(name string) {
	rec := r.lookup(name)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state = domain.HealthDisabled
	r.log.Warn("provider disabled", logger.String("provider", name))
}

// List returns discovery info for every registered provider in
// registration order.
func (r *Registry) List() []driving.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]driving.ProviderInfo, 0, len(r.order))
	for _, name := range r.order {
		rec := r.records[name]
		infos = append(infos, driving.ProviderInfo{
			Name:       name,
			Health:     rec.health(r.now(), r.policy),
			Descriptor: rec.desc,
		})
	}
	return infos
}

func (r *Registry) lookup(name string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[name]
}

// health returns the record's state, applying lazy cooldown recovery:
// once a degraded provider's cooldown elapses, its failure count resets and
// it is offered normally again.
func (rec *record) health(now time.Time, policy BreakerPolicy) domain.HealthState {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state == domain.HealthDegraded && now.Sub(rec.degradedAt) >= policy.Cooldown {
		rec.state = domain.HealthAvailable
		rec.transientFailures = 0
	}
	return rec.state
}
