package services

import (
	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

// Scoring constants. Strictly higher score means strictly preferred; ties
// are broken by performance class, then registration order.
const (
	// explicitFormatBonus rewards descriptors that list the document's
	// format explicitly over wildcard/generic support.
	explicitFormatBonus = 10

	// affinityBonus rewards feature flags matching the operation's
	// preferences (e.g. OCR capability for extracting scanned documents).
	affinityBonus = 15

	// slowPenalty is subtracted from slow providers for documents above
	// largeDocBytes, so large documents prefer faster backends.
	slowPenalty = 10

	// degradedPenalty deprioritises providers tripped by the soft circuit
	// breaker without removing them from candidacy.
	degradedPenalty = 25

	// largeDocBytes is the size threshold for the slow-provider penalty.
	largeDocBytes = 10 << 20
)

// score is a pure function of the descriptor, document, and operation.
// It must stay free of side effects and call-order dependence so repeated
// calls with identical inputs always produce identical rankings.
func score(desc domain.Descriptor, doc domain.Document, op domain.Operation) int {
	s := 0
	if desc.ListsFormat(doc.Format) {
		s += explicitFormatBonus
	}
	if hasOperationAffinity(desc.Features(op), doc, op) {
		s += affinityBonus
	}
	if desc.Perf == domain.PerfSlow && doc.Size > largeDocBytes {
		s -= slowPenalty
	}
	return s
}

// hasOperationAffinity reports whether the feature flags match the
// operation's preferences.
func hasOperationAffinity(features domain.FeatureSet, doc domain.Document, op domain.Operation) bool {
	switch op {
	case domain.OpDeepAnalysis:
		return features.Has(domain.FeatureSemanticSearch) || features.Has(domain.FeatureVisionModel)
	case domain.OpExtraction:
		return doc.Scanned && features.Has(domain.FeatureOCR)
	case domain.OpNavigation:
		return features.Has(domain.FeatureSemanticSearch)
	case domain.OpStructure:
		return features.Has(domain.FeatureLayout)
	default:
		return false
	}
}
