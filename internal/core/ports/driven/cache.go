package driven

import (
	"context"
	"time"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

// CacheKey identifies one cached result. All fields participate in equality.
type CacheKey struct {
	// Identity is the document content fingerprint.
	Identity domain.Identity

	// Operation is the document operation.
	Operation domain.Operation

	// Provider is the provider name that produced (or would produce) the result.
	Provider string

	// Params is the normalized parameter string (domain.Params.Normalize).
	Params string
}

// String renders the key in a stable, filesystem-unfriendly form used for
// sharding and logging. Disk layouts hash it instead of embedding it.
func (k CacheKey) String() string {
	return string(k.Identity) + "|" + string(k.Operation) + "|" + k.Provider + "|" + k.Params
}

// ResultCache stores provider results keyed by (identity, operation,
// provider, params). Implementations must make Get/Put/Invalidate on the
// same key appear atomic to concurrent callers while leaving distinct keys
// unblocked.
//
// The cache is an optimization, never a correctness dependency: storage
// errors degrade to miss behaviour rather than failing requests.
type ResultCache interface {
	// Get returns the cached result, or ok=false when absent or expired.
	// Expired entries are treated as absent and lazily evicted.
	Get(ctx context.Context, key CacheKey) (*domain.Result, bool)

	// Put inserts or overwrites an entry. Overwriting an unexpired entry is
	// permitted; a fresher result supersedes a stale one.
	Put(ctx context.Context, key CacheKey, result *domain.Result, ttl time.Duration) error

	// Invalidate removes every entry for the document identity.
	Invalidate(ctx context.Context, identity domain.Identity) error

	// Clear removes all entries.
	Clear(ctx context.Context) error
}
