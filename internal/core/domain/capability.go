package domain

import "time"

// Feature is a per-operation capability flag advertised by a provider.
type Feature string

// Capability flags.
const (
	FeatureOCR            Feature = "ocr"
	FeatureSemanticSearch Feature = "semantic-search"
	FeatureVisionModel    Feature = "vision-model"
	FeatureLayout         Feature = "layout"
	FeatureTables         Feature = "tables"
)

// FeatureSet is an immutable set of capability flags.
type FeatureSet map[Feature]bool

// NewFeatureSet builds a set from the given flags.
func NewFeatureSet(features ...Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set[f] = true
	}
	return set
}

// Has reports whether the flag is present.
func (s FeatureSet) Has(f Feature) bool { return s[f] }

// PerfClass is a coarse performance characteristic used as a scoring
// tie-breaker and a penalty source for large documents.
type PerfClass string

// Performance classes.
const (
	PerfFast   PerfClass = "fast"
	PerfMedium PerfClass = "medium"
	PerfSlow   PerfClass = "slow"
)

// Rank orders performance classes, lower is faster. Unknown classes sort last.
func (p PerfClass) Rank() int {
	switch p {
	case PerfFast:
		return 0
	case PerfMedium:
		return 1
	case PerfSlow:
		return 2
	default:
		return 3
	}
}

// Descriptor is the immutable capability description of a provider, created
// once at registration and never mutated afterwards.
type Descriptor struct {
	// Formats lists the formats the provider explicitly supports.
	Formats []Format

	// Wildcard marks generic support for any format. Explicit format
	// listings score higher than wildcard matches.
	Wildcard bool

	// Operations maps each supported operation to its feature flags.
	// Operations absent from the map are unsupported.
	Operations map[Operation]FeatureSet

	// Perf is the coarse performance class.
	Perf PerfClass

	// ResultTTL is the provider's declared cache TTL for its results.
	// Zero means the system default applies.
	ResultTTL time.Duration
}

// SupportsFormat reports whether the descriptor covers the format, either
// explicitly or through wildcard support.
func (d Descriptor) SupportsFormat(f Format) bool {
	if d.ListsFormat(f) {
		return true
	}
	return d.Wildcard
}

// ListsFormat reports whether the format is explicitly listed.
func (d Descriptor) ListsFormat(f Format) bool {
	for _, supported := range d.Formats {
		if supported == f {
			return true
		}
	}
	return false
}

// SupportsOperation reports whether the operation is supported.
func (d Descriptor) SupportsOperation(op Operation) bool {
	_, ok := d.Operations[op]
	return ok
}

// Features returns the feature flags for an operation (nil if unsupported).
func (d Descriptor) Features(op Operation) FeatureSet {
	return d.Operations[op]
}
