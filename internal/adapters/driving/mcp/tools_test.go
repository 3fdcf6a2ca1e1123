package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
)

func TestServer_operationHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("maps result to output", func(t *testing.T) {
		mockDoc := &mockDocumentService{
			result: &domain.Result{
				Provider:  "pdf-text",
				Operation: domain.OpOverview,
				Content:   "a report about storage",
				Metadata:  map[string]any{"pages": 12},
				FromCache: true,
				Fallbacks: []domain.Attempt{
					{Provider: "web", Reason: "unsupported or malformed content", Class: domain.ClassPermanentDocument},
				},
				GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			},
		}

		server, err := NewServer(&Ports{Document: mockDoc})
		require.NoError(t, err)

		handler := server.operationHandler(domain.OpOverview)
		_, output, err := handler(ctx, nil, OperationInput{Path: "/docs/report.pdf"})

		require.NoError(t, err)
		assert.Equal(t, "pdf-text", output.Provider)
		assert.Equal(t, "overview", output.Operation)
		assert.Equal(t, "a report about storage", output.Content)
		assert.True(t, output.FromCache)
		require.Len(t, output.Fallbacks, 1)
		assert.Equal(t, "web", output.Fallbacks[0].Provider)
		assert.Equal(t, "permanent-document", output.Fallbacks[0].Class)
	})

	t.Run("passes operation and params through", func(t *testing.T) {
		mockDoc := &mockDocumentService{result: &domain.Result{}}
		server, err := NewServer(&Ports{Document: mockDoc})
		require.NoError(t, err)

		handler := server.operationHandler(domain.OpNavigation)
		_, _, err = handler(ctx, nil, OperationInput{
			Path:      "/docs/report.pdf",
			Query:     "revenue",
			StartPage: 2,
			EndPage:   5,
			Provider:  "pdf-text",
			Fresh:     true,
		})
		require.NoError(t, err)

		req := mockDoc.lastRequest
		assert.Equal(t, domain.OpNavigation, req.Operation)
		assert.Equal(t, "/docs/report.pdf", req.Path)
		assert.Equal(t, "revenue", req.Params.Query)
		require.NotNil(t, req.Params.Pages)
		assert.Equal(t, domain.PageRange{Start: 2, End: 5}, *req.Params.Pages)
		assert.Equal(t, "pdf-text", req.Provider)
		assert.True(t, req.Fresh)
	})

	t.Run("omits page range when unset", func(t *testing.T) {
		mockDoc := &mockDocumentService{result: &domain.Result{}}
		server, err := NewServer(&Ports{Document: mockDoc})
		require.NoError(t, err)

		handler := server.operationHandler(domain.OpOverview)
		_, _, err = handler(ctx, nil, OperationInput{Path: "/docs/report.pdf"})
		require.NoError(t, err)

		assert.Nil(t, mockDoc.lastRequest.Params.Pages)
	})

	t.Run("surfaces failure trail errors", func(t *testing.T) {
		mockDoc := &mockDocumentService{
			err: &domain.AllProvidersFailedError{
				Operation: domain.OpOverview,
				Attempts: []domain.Attempt{
					{Provider: "pdf-text", Reason: "timeout", Class: domain.ClassTransient, Retries: 1},
				},
			},
		}
		server, err := NewServer(&Ports{Document: mockDoc})
		require.NoError(t, err)

		handler := server.operationHandler(domain.OpOverview)
		_, _, err = handler(ctx, nil, OperationInput{Path: "/docs/report.pdf"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "pdf-text")
	})
}

func TestServer_handleListProviders(t *testing.T) {
	mockDoc := &mockDocumentService{
		providers: []driving.ProviderInfo{
			{
				Name:   "pdf-text",
				Health: domain.HealthAvailable,
				Descriptor: domain.Descriptor{
					Formats: []domain.Format{domain.FormatPDF},
					Operations: map[domain.Operation]domain.FeatureSet{
						domain.OpOverview: domain.NewFeatureSet(),
					},
					Perf: domain.PerfFast,
				},
			},
			{
				Name:   "ocr",
				Health: domain.HealthDegraded,
				Descriptor: domain.Descriptor{
					Formats: []domain.Format{domain.FormatImage},
					Operations: map[domain.Operation]domain.FeatureSet{
						domain.OpExtraction: domain.NewFeatureSet(domain.FeatureOCR),
					},
					Perf: domain.PerfSlow,
				},
			},
		},
	}

	server, err := NewServer(&Ports{Document: mockDoc})
	require.NoError(t, err)

	_, output, err := server.handleListProviders(context.Background(), nil, struct{}{})
	require.NoError(t, err)

	assert.Equal(t, 2, output.Count)
	assert.Equal(t, "pdf-text", output.Providers[0].Name)
	assert.Equal(t, "available", output.Providers[0].Health)
	assert.Equal(t, []string{"pdf"}, output.Providers[0].Formats)
	assert.Equal(t, "degraded", output.Providers[1].Health)
	assert.Equal(t, []string{"ocr"}, output.Providers[1].Operations["extraction"])
}

func TestServer_handleCacheTools(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidate", func(t *testing.T) {
		mockDoc := &mockDocumentService{}
		server, err := NewServer(&Ports{Document: mockDoc})
		require.NoError(t, err)

		_, output, err := server.handleCacheInvalidate(ctx, nil, CacheInvalidateInput{Path: "/docs/report.pdf"})
		require.NoError(t, err)
		assert.True(t, output.OK)
		assert.Equal(t, "/docs/report.pdf", mockDoc.invalidatedPath)
	})

	t.Run("clear", func(t *testing.T) {
		mockDoc := &mockDocumentService{}
		server, err := NewServer(&Ports{Document: mockDoc})
		require.NoError(t, err)

		_, output, err := server.handleCacheClear(ctx, nil, struct{}{})
		require.NoError(t, err)
		assert.True(t, output.OK)
		assert.True(t, mockDoc.cleared)
	})
}
