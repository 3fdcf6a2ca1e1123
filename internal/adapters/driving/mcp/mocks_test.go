package mcp

import (
	"context"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
)

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	result    *domain.Result
	providers []driving.ProviderInfo
	err       error

	lastRequest     driving.Request
	invalidatedPath string
	cleared         bool
}

func (m *mockDocumentService) Perform(_ context.Context, req driving.Request) (*domain.Result, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *mockDocumentService) ListProviders(_ context.Context) []driving.ProviderInfo {
	return m.providers
}

func (m *mockDocumentService) InvalidateCache(_ context.Context, path string) error {
	m.invalidatedPath = path
	return m.err
}

func (m *mockDocumentService) ClearCache(_ context.Context) error {
	m.cleared = true
	return m.err
}
