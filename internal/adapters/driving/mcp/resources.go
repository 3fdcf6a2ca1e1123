package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for Docsray resources.
	uriScheme = "docsray://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing providers.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "providers",
		Name:        "providers",
		Description: "Registered document providers with health and capabilities",
		MIMEType:    "application/json",
	}, s.handleProvidersResource)

	// Template for one provider.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "providers/{name}",
		Name:        "provider",
		Description: "One registered provider's health and capabilities",
		MIMEType:    "application/json",
	}, s.handleProviderResource)
}

// handleProvidersResource returns the full provider list.
func (s *Server) handleProvidersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos := s.ports.Document.ListProviders(ctx)

	outputs := make([]ProviderOutput, len(infos))
	for i, info := range infos {
		outputs[i] = toProviderOutput(info.Name, string(info.Health), info.Descriptor)
	}

	data, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling providers: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleProviderResource returns one provider by name.
func (s *Server) handleProviderResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	name := extractProviderName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	for _, info := range s.ports.Document.ListProviders(ctx) {
		if info.Name != name {
			continue
		}
		data, err := json.MarshalIndent(toProviderOutput(info.Name, string(info.Health), info.Descriptor), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshalling provider: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			}},
		}, nil
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

// extractProviderName extracts the provider name from a URI like docsray://providers/{name}.
func extractProviderName(uri string) string {
	const prefix = uriScheme + "providers/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
