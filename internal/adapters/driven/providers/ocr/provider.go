package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
)

// Name is the provider's registry name.
const Name = "ocr"

const excerptLimit = 600

// DefaultLanguages is the Tesseract language set used when none is configured.
var DefaultLanguages = []string{"eng"}

var _ driven.Provider = (*Provider)(nil)

// Provider recognises text in images via Tesseract. A fresh client is created
// per invocation; gosseract clients are not safe for concurrent use.
type Provider struct {
	languages []string
}

// New creates the provider. languages may be nil for the default set.
func New(languages []string) *Provider {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Provider{languages: languages}
}

// Name implements driven.Provider.
func (p *Provider) Name() string { return Name }

// Capabilities implements driven.Provider.
func (p *Provider) Capabilities() domain.Descriptor {
	return domain.Descriptor{
		Formats: []domain.Format{domain.FormatImage},
		Operations: map[domain.Operation]domain.FeatureSet{
			domain.OpOverview:   domain.NewFeatureSet(domain.FeatureOCR),
			domain.OpExtraction: domain.NewFeatureSet(domain.FeatureOCR),
			domain.OpNavigation: domain.NewFeatureSet(domain.FeatureOCR),
		},
		Perf:      domain.PerfSlow,
		ResultTTL: 24 * time.Hour,
	}
}

// CanProcess implements driven.Provider.
func (p *Provider) CanProcess(doc domain.Document) bool {
	return doc.Format == domain.FormatImage
}

// Overview implements driven.Provider.
func (p *Provider) Overview(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	text, err := p.recognise(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &domain.Result{
		Content: truncate(text, excerptLimit),
		Metadata: map[string]any{
			"words":     len(strings.Fields(text)),
			"languages": strings.Join(p.languages, "+"),
		},
	}, nil
}

// Structure implements driven.Provider. Unsupported: single images have no
// section hierarchy worth reporting.
func (p *Provider) Structure(context.Context, domain.Document, domain.Params) (*domain.Result, error) {
	return nil, fmt.Errorf("ocr: structure: %w", domain.ErrInvalidOperation)
}

// DeepAnalysis implements driven.Provider. Unsupported.
func (p *Provider) DeepAnalysis(context.Context, domain.Document, domain.Params) (*domain.Result, error) {
	return nil, fmt.Errorf("ocr: deep analysis: %w", domain.ErrInvalidOperation)
}

// Extract implements driven.Provider.
func (p *Provider) Extract(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	text, err := p.recognise(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &domain.Result{
		Content: text,
		Metadata: map[string]any{
			"words":     len(strings.Fields(text)),
			"languages": strings.Join(p.languages, "+"),
		},
	}, nil
}

// Navigate implements driven.Provider.
func (p *Provider) Navigate(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	text, err := p.recognise(ctx, doc)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(params.Query)
	var matches []domain.Match
	if query != "" {
		for i, line := range strings.Split(text, "\n") {
			if strings.Contains(strings.ToLower(line), query) {
				matches = append(matches, domain.Match{
					Line:    i + 1,
					Context: strings.TrimSpace(line),
				})
			}
		}
	}
	return &domain.Result{
		Matches:  matches,
		Metadata: map[string]any{"query": params.Query, "hits": len(matches)},
	}, nil
}

// recognise runs Tesseract on the document. The engine has no cancellation
// hook, so the context is only checked up front.
func (p *Provider) recognise(ctx context.Context, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.languages...); err != nil {
		return "", fmt.Errorf("set ocr languages: %w", domain.ErrProviderTransient)
	}
	if err := client.SetImage(doc.Path); err != nil {
		return "", fmt.Errorf("load image: %w", domain.ErrUnsupportedContent)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognise text: %w", domain.ErrProviderTransient)
	}
	return text, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
