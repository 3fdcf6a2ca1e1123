package driving

import (
	"context"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

// Request describes one document operation call.
type Request struct {
	// Path is the document location on disk.
	Path string

	// Operation is the requested operation.
	Operation domain.Operation

	// Params carries operation-specific parameters.
	Params domain.Params

	// Provider optionally names an explicit provider, bypassing scoring.
	Provider string

	// Fresh forces recomputation: the document's cache entries are
	// invalidated before the request runs.
	Fresh bool
}

// ProviderInfo is the discovery view of one registered provider.
type ProviderInfo struct {
	// Name is the unique provider name.
	Name string

	// Health is the current health state.
	Health domain.HealthState

	// Descriptor is the provider's capability descriptor.
	Descriptor domain.Descriptor
}

// DocumentService is the single entry point for document operations,
// exposed to the transport layer (MCP server) and the CLI.
type DocumentService interface {
	// Perform runs the requested operation, selecting a provider and
	// falling back through candidates until one succeeds.
	Perform(ctx context.Context, req Request) (*domain.Result, error)

	// ListProviders returns every registered provider with its health and
	// capability descriptor.
	ListProviders(ctx context.Context) []ProviderInfo

	// InvalidateCache removes cached results for the document at path.
	InvalidateCache(ctx context.Context, path string) error

	// ClearCache removes all cached results.
	ClearCache(ctx context.Context) error
}
