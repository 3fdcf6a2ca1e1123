package pdftext

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
)

// Name is the provider's registry name.
const Name = "pdf-text"

const excerptLimit = 600

var _ driven.Provider = (*Provider)(nil)

// Provider extracts content from the PDF text layer via ledongthuc/pdf.
type Provider struct{}

// New creates the provider.
func New() *Provider { return &Provider{} }

// Name implements driven.Provider.
func (p *Provider) Name() string { return Name }

// Capabilities implements driven.Provider.
func (p *Provider) Capabilities() domain.Descriptor {
	return domain.Descriptor{
		Formats: []domain.Format{domain.FormatPDF},
		Operations: map[domain.Operation]domain.FeatureSet{
			domain.OpOverview:   domain.NewFeatureSet(),
			domain.OpStructure:  domain.NewFeatureSet(domain.FeatureLayout),
			domain.OpExtraction: domain.NewFeatureSet(),
			domain.OpNavigation: domain.NewFeatureSet(),
		},
		Perf:      domain.PerfFast,
		ResultTTL: 24 * time.Hour,
	}
}

// CanProcess implements driven.Provider. Scanned PDFs have no text layer for
// this provider to read.
func (p *Provider) CanProcess(doc domain.Document) bool {
	return doc.Format == domain.FormatPDF && !doc.Scanned
}

// Overview implements driven.Provider.
func (p *Provider) Overview(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	f, reader, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, openErr(err)
	}
	defer f.Close()

	metadata := map[string]any{"pages": reader.NumPage()}
	info := reader.Trailer().Key("Info")
	for _, field := range []string{"Title", "Author", "Subject", "Creator"} {
		if v := info.Key(field); v.Kind() == pdf.String {
			if s := strings.TrimSpace(v.Text()); s != "" {
				metadata[strings.ToLower(field)] = s
			}
		}
	}

	excerpt, err := p.pageText(ctx, reader, 1)
	if err != nil {
		return nil, err
	}
	return &domain.Result{
		Content:  truncate(excerpt, excerptLimit),
		Metadata: metadata,
	}, nil
}

// Structure implements driven.Provider. The document outline is used when
// present; otherwise one section per page is synthesised.
func (p *Provider) Structure(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	f, reader, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, openErr(err)
	}
	defer f.Close()

	sections := flattenOutline(reader.Outline(), 1)
	if len(sections) == 0 {
		for page := 1; page <= reader.NumPage(); page++ {
			sections = append(sections, domain.Section{
				Title: fmt.Sprintf("Page %d", page),
				Level: 1,
				Page:  page,
			})
		}
	}
	return &domain.Result{
		Sections: sections,
		Metadata: map[string]any{"pages": reader.NumPage()},
	}, nil
}

// DeepAnalysis implements driven.Provider. Unsupported: the descriptor does
// not advertise it, so the registry never routes it here.
func (p *Provider) DeepAnalysis(context.Context, domain.Document, domain.Params) (*domain.Result, error) {
	return nil, fmt.Errorf("pdf-text: deep analysis: %w", domain.ErrInvalidOperation)
}

// Extract implements driven.Provider.
func (p *Provider) Extract(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	f, reader, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, openErr(err)
	}
	defer f.Close()

	var out strings.Builder
	extracted := 0
	for page := 1; page <= reader.NumPage(); page++ {
		if params.Pages != nil && !params.Pages.Contains(page) {
			continue
		}
		text, err := p.pageText(ctx, reader, page)
		if err != nil {
			return nil, err
		}
		out.WriteString(text)
		out.WriteString("\n")
		extracted++
	}
	return &domain.Result{
		Content:  out.String(),
		Metadata: map[string]any{"pages": reader.NumPage(), "pages_extracted": extracted},
	}, nil
}

// Navigate implements driven.Provider. Matches are located per page and line
// with case-insensitive substring search.
func (p *Provider) Navigate(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	f, reader, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, openErr(err)
	}
	defer f.Close()

	query := strings.ToLower(params.Query)
	var matches []domain.Match
	for page := 1; page <= reader.NumPage(); page++ {
		if params.Pages != nil && !params.Pages.Contains(page) {
			continue
		}
		text, err := p.pageText(ctx, reader, page)
		if err != nil {
			return nil, err
		}
		for i, line := range strings.Split(text, "\n") {
			if query != "" && strings.Contains(strings.ToLower(line), query) {
				matches = append(matches, domain.Match{
					Page:    page,
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

// pageText reads one page's text layer, honouring cancellation between pages.
func (p *Provider) pageText(ctx context.Context, reader *pdf.Reader, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pg := reader.Page(page)
	if pg.V.IsNull() {
		return "", nil
	}
	text, err := pg.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read pdf page %d: %v: %w", page, err, domain.ErrUnsupportedContent)
	}
	return text, nil
}

// openErr wraps a pdf.Open failure so the root cause stays visible in the
// attempt trail while errors.Is still matches the sentinel.
func openErr(err error) error {
	return fmt.Errorf("open pdf: %v: %w", err, domain.ErrUnsupportedContent)
}

func flattenOutline(outline pdf.Outline, level int) []domain.Section {
	var sections []domain.Section
	for _, child := range outline.Child {
		title := strings.TrimSpace(child.Title)
		if title != "" {
			sections = append(sections, domain.Section{Title: title, Level: level})
		}
		sections = append(sections, flattenOutline(child, level+1)...)
	}
	return sections
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	// Back off to a rune boundary so the cut never splits a UTF-8 sequence.
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "…"
}
