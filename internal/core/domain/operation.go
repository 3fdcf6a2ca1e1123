package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Operation is one of the five document-understanding actions.
// The set is closed; anything else is invalid input.
type Operation string

// The supported operations.
const (
	OpOverview     Operation = "overview"
	OpStructure    Operation = "structure"
	OpDeepAnalysis Operation = "deep-analysis"
	OpExtraction   Operation = "extraction"
	OpNavigation   Operation = "navigation"
)

// Operations returns all supported operations in a fixed order.
func Operations() []Operation {
	return []Operation{OpOverview, OpStructure, OpDeepAnalysis, OpExtraction, OpNavigation}
}

// Valid reports whether op is a member of the closed operation set.
func (op Operation) Valid() bool {
	switch op {
	case OpOverview, OpStructure, OpDeepAnalysis, OpExtraction, OpNavigation:
		return true
	default:
		return false
	}
}

// PageRange selects a contiguous page span. Pages are 1-based and the range
// is inclusive; a zero End means "through the last page".
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether the 1-based page falls inside the range.
func (r PageRange) Contains(page int) bool {
	if page < r.Start {
		return false
	}
	return r.End == 0 || page <= r.End
}

// Params carries operation-specific parameters. Unused fields stay zero;
// Normalize produces the canonical form used in cache keys.
type Params struct {
	// Pages restricts page-oriented operations to a span.
	Pages *PageRange `json:"pages,omitempty"`

	// Depth tunes overview/deep-analysis detail ("quick", "standard", "deep").
	Depth string `json:"depth,omitempty"`

	// OutputFormat selects the result rendering ("text", "markdown", "json").
	OutputFormat string `json:"output_format,omitempty"`

	// Query is the search string for navigation.
	Query string `json:"query,omitempty"`

	// Targets names what extraction should pull out (e.g. "tables", "links").
	Targets []string `json:"targets,omitempty"`

	// Instructions gives free-form guidance for deep analysis.
	Instructions string `json:"instructions,omitempty"`
}

// Normalize renders the parameters as a canonical string: fixed field order,
// zero values omitted. Two Params with the same meaning always normalize to
// the same string, so it is safe as a cache key component.
func (p Params) Normalize() string {
	var parts []string
	if p.Pages != nil && (p.Pages.Start != 0 || p.Pages.End != 0) {
		parts = append(parts, fmt.Sprintf("pages=%d-%d", p.Pages.Start, p.Pages.End))
	}
	if p.Depth != "" {
		parts = append(parts, "depth="+p.Depth)
	}
	if p.OutputFormat != "" {
		parts = append(parts, "format="+p.OutputFormat)
	}
	if p.Query != "" {
		parts = append(parts, "query="+p.Query)
	}
	if len(p.Targets) > 0 {
		targets := make([]string, len(p.Targets))
		copy(targets, p.Targets)
		sort.Strings(targets)
		parts = append(parts, "targets="+strings.Join(targets, ","))
	}
	if p.Instructions != "" {
		parts = append(parts, "instructions="+p.Instructions)
	}
	return strings.Join(parts, ";")
}
