package cli

import (
	"context"
	"time"

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

// setupTestServices installs a mock document service and returns the mock
// plus a cleanup restoring the previous wiring.
func setupTestServices() (*mockDocumentService, func()) {
	oldService := documentService
	mock := &mockDocumentService{
		result: &domain.Result{
			Provider:    "pdf-text",
			Operation:   domain.OpOverview,
			Content:     "a short overview",
			Metadata:    map[string]any{"pages": 3},
			GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		providers: []driving.ProviderInfo{
			{
				Name:   "pdf-text",
				Health: domain.HealthAvailable,
				Descriptor: domain.Descriptor{
					Formats: []domain.Format{domain.FormatPDF},
					Operations: map[domain.Operation]domain.FeatureSet{
						domain.OpOverview:   domain.NewFeatureSet(),
						domain.OpExtraction: domain.NewFeatureSet(),
					},
					Perf: domain.PerfFast,
				},
			},
		},
	}
	documentService = mock
	return mock, func() { documentService = oldService }
}
