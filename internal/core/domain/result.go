package domain

import "time"

// Section is one entry in a document's structure map.
type Section struct {
	// Title is the section heading text.
	Title string `json:"title"`

	// Level is the nesting depth (1 = top level).
	Level int `json:"level"`

	// Page is the 1-based page the section starts on (0 when unknown).
	Page int `json:"page,omitempty"`
}

// Match is one navigation hit.
type Match struct {
	// Page is the 1-based page of the hit (0 when the format has no pages).
	Page int `json:"page,omitempty"`

	// Line is the 1-based line of the hit (0 when unknown).
	Line int `json:"line,omitempty"`

	// Context is the surrounding text.
	Context string `json:"context"`
}

// Result is the payload produced by a provider for one operation.
// Results are serialised verbatim into the cache.
type Result struct {
	// Provider names the provider that produced the result.
	Provider string `json:"provider"`

	// Operation is the operation that produced the result.
	Operation Operation `json:"operation"`

	// Content is the primary textual output.
	Content string `json:"content,omitempty"`

	// Sections holds the structure map (structure operation).
	Sections []Section `json:"sections,omitempty"`

	// Matches holds navigation hits (navigation operation).
	Matches []Match `json:"matches,omitempty"`

	// Metadata carries provider-specific extras (page counts, titles, ...).
	Metadata map[string]any `json:"metadata,omitempty"`

	// FromCache marks results served from the cache rather than a fresh
	// provider invocation. Never persisted as true.
	FromCache bool `json:"-"`

	// Fallbacks records providers that failed before this result was
	// produced, for the caller's diagnostic trail.
	Fallbacks []Attempt `json:"fallbacks,omitempty"`

	// GeneratedAt is when the provider produced the result.
	GeneratedAt time.Time `json:"generated_at"`
}
