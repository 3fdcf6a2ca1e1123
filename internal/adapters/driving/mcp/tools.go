package mcp

import (
	"context"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
)

// OperationInput is the shared input schema for the document operation tools.
type OperationInput struct {
	Path         string   `json:"path" jsonschema:"absolute or relative path to the document file"`
	StartPage    int      `json:"start_page,omitempty" jsonschema:"first page to consider, 1-based"`
	EndPage      int      `json:"end_page,omitempty" jsonschema:"last page to consider, 0 means through the end"`
	Depth        string   `json:"depth,omitempty" jsonschema:"analysis depth: quick, standard, or deep"`
	OutputFormat string   `json:"output_format,omitempty" jsonschema:"result rendering: text, markdown, or json"`
	Query        string   `json:"query,omitempty" jsonschema:"search query (seek tool)"`
	Targets      []string `json:"targets,omitempty" jsonschema:"what to extract, e.g. tables or links"`
	Instructions string   `json:"instructions,omitempty" jsonschema:"free-form analysis guidance (xray tool)"`
	Provider     string   `json:"provider,omitempty" jsonschema:"force a specific provider instead of automatic selection"`
	Fresh        bool     `json:"fresh,omitempty" jsonschema:"bypass cached results and recompute"`
}

// OperationOutput is the shared output schema for the document operation tools.
type OperationOutput struct {
	Provider    string           `json:"provider"`
	Operation   string           `json:"operation"`
	Content     string           `json:"content,omitempty"`
	Sections    []domain.Section `json:"sections,omitempty"`
	Matches     []domain.Match   `json:"matches,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	FromCache   bool             `json:"from_cache"`
	Fallbacks   []FallbackOutput `json:"fallbacks,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// FallbackOutput describes one provider that failed before the result was produced.
type FallbackOutput struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
	Class    string `json:"class"`
	Retries  int    `json:"retries"`
}

// ListProvidersOutput is the output schema for the list_providers tool.
type ListProvidersOutput struct {
	Providers []ProviderOutput `json:"providers"`
	Count     int              `json:"count"`
}

// ProviderOutput describes one registered provider.
type ProviderOutput struct {
	Name       string              `json:"name"`
	Health     string              `json:"health"`
	Formats    []string            `json:"formats"`
	Wildcard   bool                `json:"wildcard,omitempty"`
	Operations map[string][]string `json:"operations"`
	Perf       string              `json:"perf"`
}

// CacheInvalidateInput is the input schema for the cache_invalidate tool.
type CacheInvalidateInput struct {
	Path string `json:"path" jsonschema:"path of the document whose cached results should be removed"`
}

// CacheOutput is the output schema for the cache management tools.
type CacheOutput struct {
	OK bool `json:"ok"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "peek",
		Description: "Get a quick overview of a document: what it is, its metadata, and a short excerpt",
	}, s.operationHandler(domain.OpOverview))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "map",
		Description: "Map a document's structure: its sections and heading hierarchy",
	}, s.operationHandler(domain.OpStructure))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "xray",
		Description: "Run a deep analysis of a document's content",
	}, s.operationHandler(domain.OpDeepAnalysis))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract",
		Description: "Extract content from a document, optionally restricted to pages or targets like tables and links",
	}, s.operationHandler(domain.OpExtraction))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "seek",
		Description: "Find where content matching a query appears in a document",
	}, s.operationHandler(domain.OpNavigation))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_providers",
		Description: "List registered document providers with their health and capabilities",
	}, s.handleListProviders)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_invalidate",
		Description: "Remove cached results for one document",
	}, s.handleCacheInvalidate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_clear",
		Description: "Remove all cached results",
	}, s.handleCacheClear)
}

// operationHandler builds the tool handler for one document operation. All
// five operation tools share the same request plumbing.
func (s *Server) operationHandler(
	op domain.Operation,
) func(context.Context, *mcp.CallToolRequest, OperationInput) (*mcp.CallToolResult, OperationOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input OperationInput) (*mcp.CallToolResult, OperationOutput, error) {
		result, err := s.ports.Document.Perform(ctx, driving.Request{
			Path:      input.Path,
			Operation: op,
			Params:    toParams(input),
			Provider:  input.Provider,
			Fresh:     input.Fresh,
		})
		if err != nil {
			return nil, OperationOutput{}, err
		}
		return nil, toOutput(result), nil
	}
}

// handleListProviders handles the list_providers tool invocation.
func (s *Server) handleListProviders(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, ListProvidersOutput, error) {
	infos := s.ports.Document.ListProviders(ctx)

	output := ListProvidersOutput{
		Providers: make([]ProviderOutput, len(infos)),
		Count:     len(infos),
	}
	for i, info := range infos {
		output.Providers[i] = toProviderOutput(info.Name, string(info.Health), info.Descriptor)
	}
	return nil, output, nil
}

// handleCacheInvalidate handles the cache_invalidate tool invocation.
func (s *Server) handleCacheInvalidate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CacheInvalidateInput,
) (*mcp.CallToolResult, CacheOutput, error) {
	if err := s.ports.Document.InvalidateCache(ctx, input.Path); err != nil {
		return nil, CacheOutput{}, err
	}
	return nil, CacheOutput{OK: true}, nil
}

// handleCacheClear handles the cache_clear tool invocation.
func (s *Server) handleCacheClear(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, CacheOutput, error) {
	if err := s.ports.Document.ClearCache(ctx); err != nil {
		return nil, CacheOutput{}, err
	}
	return nil, CacheOutput{OK: true}, nil
}

func toParams(input OperationInput) domain.Params {
	params := domain.Params{
		Depth:        input.Depth,
		OutputFormat: input.OutputFormat,
		Query:        input.Query,
		Targets:      input.Targets,
		Instructions: input.Instructions,
	}
	if input.StartPage != 0 || input.EndPage != 0 {
		params.Pages = &domain.PageRange{Start: input.StartPage, End: input.EndPage}
	}
	return params
}

func toProviderOutput(name, health string, desc domain.Descriptor) ProviderOutput {
	formats := make([]string, len(desc.Formats))
	for i, f := range desc.Formats {
		formats[i] = string(f)
	}
	operations := make(map[string][]string, len(desc.Operations))
	for op, features := range desc.Operations {
		names := make([]string, 0, len(features))
		for f := range features {
			names = append(names, string(f))
		}
		sort.Strings(names)
		operations[string(op)] = names
	}
	return ProviderOutput{
		Name:       name,
		Health:     health,
		Formats:    formats,
		Wildcard:   desc.Wildcard,
		Operations: operations,
		Perf:       string(desc.Perf),
	}
}

func toOutput(result *domain.Result) OperationOutput {
	output := OperationOutput{
		Provider:    result.Provider,
		Operation:   string(result.Operation),
		Content:     result.Content,
		Sections:    result.Sections,
		Matches:     result.Matches,
		Metadata:    result.Metadata,
		FromCache:   result.FromCache,
		GeneratedAt: result.GeneratedAt,
	}
	for _, attempt := range result.Fallbacks {
		output.Fallbacks = append(output.Fallbacks, FallbackOutput{
			Provider: attempt.Provider,
			Reason:   attempt.Reason,
			Class:    string(attempt.Class),
			Retries:  attempt.Retries,
		})
	}
	return output
}
