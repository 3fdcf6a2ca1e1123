package driven

import (
	"context"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

// Provider is the uniform adapter contract every document-processing backend
// implements. Each backend is opaque to the core: the registry only sees the
// capability descriptor and the five operation methods.
//
// Operation methods return results or typed errors wrapping the domain
// sentinels (ErrUnsupportedContent, ErrProviderAuth, ErrRateLimited,
// ErrProviderTransient) so the orchestrator can classify failures.
type Provider interface {
	// Name returns the unique, stable provider name.
	Name() string

	// Capabilities returns the immutable capability descriptor.
	Capabilities() domain.Descriptor

	// CanProcess is a cheap format-only pre-filter, consulted before
	// full scoring. It must not read document content.
	CanProcess(doc domain.Document) bool

	// Overview produces a quick summary of the document.
	Overview(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error)

	// Structure maps the document's section/heading hierarchy.
	Structure(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error)

	// DeepAnalysis performs a thorough content analysis.
	DeepAnalysis(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error)

	// Extract pulls content out of the document.
	Extract(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error)

	// Navigate locates content matching the query parameter.
	Navigate(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error)
}
