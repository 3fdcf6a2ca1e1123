// Package mcp provides an MCP (Model Context Protocol) server adapter for
// Docsray. It exposes the document operations as tools AI assistants can call.
package mcp

import "errors"

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("mcp: document service is required")
