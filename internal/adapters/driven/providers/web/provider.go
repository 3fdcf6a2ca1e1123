package web

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
)

// Name is the provider's registry name.
const Name = "web"

const excerptLimit = 600

var _ driven.Provider = (*Provider)(nil)

// Provider handles HTML documents.
type Provider struct{}

// New creates the provider.
func New() *Provider { return &Provider{} }

// Name implements driven.Provider.
func (p *Provider) Name() string { return Name }

// Capabilities implements driven.Provider.
func (p *Provider) Capabilities() domain.Descriptor {
	return domain.Descriptor{
		Formats: []domain.Format{domain.FormatHTML},
		Operations: map[domain.Operation]domain.FeatureSet{
			domain.OpOverview:   domain.NewFeatureSet(),
			domain.OpStructure:  domain.NewFeatureSet(domain.FeatureLayout),
			domain.OpExtraction: domain.NewFeatureSet(domain.FeatureTables),
			domain.OpNavigation: domain.NewFeatureSet(),
		},
		Perf:      domain.PerfMedium,
		ResultTTL: 6 * time.Hour,
	}
}

// CanProcess implements driven.Provider.
func (p *Provider) CanProcess(doc domain.Document) bool {
	return doc.Format == domain.FormatHTML
}

// Overview implements driven.Provider. Readability boils the page down to
// its article content before summarising.
func (p *Provider) Overview(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	article, err := p.readable(ctx, doc)
	if err != nil {
		return nil, err
	}

	excerpt := article.Excerpt
	if excerpt == "" {
		excerpt = article.TextContent
	}
	return &domain.Result{
		Content: truncate(excerpt, excerptLimit),
		Metadata: map[string]any{
			"title":  article.Title,
			"byline": article.Byline,
			"length": article.Length,
		},
	}, nil
}

// Structure implements driven.Provider. Headings h1-h6 map to sections.
func (p *Provider) Structure(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	dom, err := p.dom(ctx, doc)
	if err != nil {
		return nil, err
	}

	var sections []domain.Section
	dom.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}
		level := int(goquery.NodeName(sel)[1] - '0')
		sections = append(sections, domain.Section{Title: title, Level: level})
	})
	return &domain.Result{
		Sections: sections,
		Metadata: map[string]any{"title": strings.TrimSpace(dom.Find("title").First().Text())},
	}, nil
}

// DeepAnalysis implements driven.Provider. Unsupported.
func (p *Provider) DeepAnalysis(context.Context, domain.Document, domain.Params) (*domain.Result, error) {
	return nil, fmt.Errorf("web: deep analysis: %w", domain.ErrInvalidOperation)
}

// Extract implements driven.Provider. Targets "links" and "tables" pull
// those out of the DOM; the default is the readability text content.
func (p *Provider) Extract(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	wantLinks := hasTarget(params.Targets, "links")
	wantTables := hasTarget(params.Targets, "tables")
	if !wantLinks && !wantTables {
		article, err := p.readable(ctx, doc)
		if err != nil {
			return nil, err
		}
		return &domain.Result{
			Content:  article.TextContent,
			Metadata: map[string]any{"title": article.Title},
		}, nil
	}

	dom, err := p.dom(ctx, doc)
	if err != nil {
		return nil, err
	}

	var parts []string
	if wantLinks {
		dom.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			label := strings.TrimSpace(sel.Text())
			if label == "" {
				label = href
			}
			parts = append(parts, fmt.Sprintf("%s: %s", label, href))
		})
	}
	if wantTables {
		dom.Find("table").Each(func(_ int, table *goquery.Selection) {
			var rows []string
			table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
				var cells []string
				tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
					cells = append(cells, strings.TrimSpace(cell.Text()))
				})
				rows = append(rows, strings.Join(cells, " | "))
			})
			parts = append(parts, strings.Join(rows, "\n"))
		})
	}
	return &domain.Result{
		Content:  strings.Join(parts, "\n"),
		Metadata: map[string]any{"items": len(parts)},
	}, nil
}

// Navigate implements driven.Provider. The search runs over the readable
// text so boilerplate markup never produces hits.
func (p *Provider) Navigate(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	article, err := p.readable(ctx, doc)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(params.Query)
	var matches []domain.Match
	if query != "" {
		for i, line := range strings.Split(article.TextContent, "\n") {
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

func (p *Provider) readable(ctx context.Context, doc domain.Document) (readability.Article, error) {
	if err := ctx.Err(); err != nil {
		return readability.Article{}, err
	}
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return readability.Article{}, fmt.Errorf("read document: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(data), &url.URL{Scheme: "file", Path: doc.Path})
	if err != nil {
		return readability.Article{}, fmt.Errorf("parse html: %w", domain.ErrUnsupportedContent)
	}
	return article, nil
}

func (p *Provider) dom(ctx context.Context, doc domain.Document) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	defer f.Close()
	dom, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", domain.ErrUnsupportedContent)
	}
	return dom, nil
}

func hasTarget(targets []string, want string) bool {
	for _, t := range targets {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
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
