package driven

import "github.com/xingh/docsray-mcp-sub001/internal/core/domain"

// DocumentWatcher observes served documents for on-disk changes so their
// cache entries can be invalidated ahead of TTL expiry.
type DocumentWatcher interface {
	// Watch registers a document path with its identity. Watching the same
	// path again replaces the recorded identity.
	Watch(path string, identity domain.Identity) error

	// Close stops the watcher and releases its resources.
	Close() error
}
