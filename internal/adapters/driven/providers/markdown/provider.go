package markdown

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
)

// Name is the provider's registry name.
const Name = "markdown"

const (
	excerptLimit    = 600
	wordsPerMinute  = 200
	maxDocumentSize = 64 << 20
)

var _ driven.Provider = (*Provider)(nil)

// Provider parses Markdown (and plain text) with goldmark.
type Provider struct {
	md goldmark.Markdown
}

// New creates the provider with table support enabled.
func New() *Provider {
	return &Provider{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Name implements driven.Provider.
func (p *Provider) Name() string { return Name }

// Capabilities implements driven.Provider.
func (p *Provider) Capabilities() domain.Descriptor {
	return domain.Descriptor{
		Formats: []domain.Format{domain.FormatMarkdown, domain.FormatText},
		Operations: map[domain.Operation]domain.FeatureSet{
			domain.OpOverview:     domain.NewFeatureSet(),
			domain.OpStructure:    domain.NewFeatureSet(domain.FeatureLayout),
			domain.OpDeepAnalysis: domain.NewFeatureSet(),
			domain.OpExtraction:   domain.NewFeatureSet(domain.FeatureTables),
			domain.OpNavigation:   domain.NewFeatureSet(),
		},
		Perf:      domain.PerfFast,
		ResultTTL: 12 * time.Hour,
	}
}

// CanProcess implements driven.Provider.
func (p *Provider) CanProcess(doc domain.Document) bool {
	if doc.Format != domain.FormatMarkdown && doc.Format != domain.FormatText {
		return false
	}
	return doc.Size <= maxDocumentSize
}

// Overview implements driven.Provider.
func (p *Provider) Overview(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	src, root, err := p.parse(ctx, doc)
	if err != nil {
		return nil, err
	}

	title := ""
	firstParagraph := ""
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" && node.Level == 1 {
				title = string(node.Text(src))
			}
		case *ast.Paragraph:
			if firstParagraph == "" {
				firstParagraph = string(node.Text(src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	stats := collectStats(src, root)
	return &domain.Result{
		Content: truncate(firstParagraph, excerptLimit),
		Metadata: map[string]any{
			"title":    title,
			"headings": stats.headings,
			"words":    stats.words,
			"links":    stats.links,
		},
	}, nil
}

// Structure implements driven.Provider.
func (p *Provider) Structure(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	src, root, err := p.parse(ctx, doc)
	if err != nil {
		return nil, err
	}

	var sections []domain.Section
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering {
			sections = append(sections, domain.Section{
				Title: string(heading.Text(src)),
				Level: heading.Level,
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.Result{Sections: sections}, nil
}

// DeepAnalysis implements driven.Provider. It reports document statistics:
// word count, heading depth distribution, link and code-block inventory, and
// an estimated reading time.
func (p *Provider) DeepAnalysis(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	src, root, err := p.parse(ctx, doc)
	if err != nil {
		return nil, err
	}

	stats := collectStats(src, root)
	readingMinutes := (stats.words + wordsPerMinute - 1) / wordsPerMinute

	var summary strings.Builder
	fmt.Fprintf(&summary, "%d words across %d headings; estimated reading time %d min.",
		stats.words, stats.headings, readingMinutes)
	if len(stats.codeLanguages) > 0 {
		fmt.Fprintf(&summary, " Code blocks: %s.", strings.Join(stats.codeLanguages, ", "))
	}

	return &domain.Result{
		Content: summary.String(),
		Metadata: map[string]any{
			"words":           stats.words,
			"headings":        stats.headings,
			"heading_levels":  stats.headingLevels,
			"links":           stats.links,
			"code_blocks":     stats.codeBlocks,
			"code_languages":  stats.codeLanguages,
			"tables":          stats.tables,
			"reading_minutes": readingMinutes,
		},
	}, nil
}

// Extract implements driven.Provider. Targets narrow the output: "links" and
// "code" are pulled out individually; anything else returns the full source.
func (p *Provider) Extract(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	src, root, err := p.parse(ctx, doc)
	if err != nil {
		return nil, err
	}

	wantLinks := hasTarget(params.Targets, "links")
	wantCode := hasTarget(params.Targets, "code")
	if !wantLinks && !wantCode {
		return &domain.Result{Content: string(src)}, nil
	}

	var parts []string
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			if wantLinks {
				parts = append(parts, fmt.Sprintf("%s: %s", node.Text(src), node.Destination))
			}
		case *ast.AutoLink:
			if wantLinks {
				parts = append(parts, string(node.URL(src)))
			}
		case *ast.FencedCodeBlock:
			if wantCode {
				parts = append(parts, blockText(node, src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.Result{
		Content:  strings.Join(parts, "\n"),
		Metadata: map[string]any{"items": len(parts)},
	}, nil
}

// Navigate implements driven.Provider.
func (p *Provider) Navigate(ctx context.Context, doc domain.Document, params domain.Params) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	query := strings.ToLower(params.Query)
	var matches []domain.Match
	if query != "" {
		for i, line := range strings.Split(string(src), "\n") {
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

func (p *Provider) parse(ctx context.Context, doc domain.Document) ([]byte, ast.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	src, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read document: %w", err)
	}
	root := p.md.Parser().Parse(text.NewReader(src))
	return src, root, nil
}

type docStats struct {
	words         int
	headings      int
	headingLevels map[int]int
	links         int
	codeBlocks    int
	codeLanguages []string
	tables        int
}

func collectStats(src []byte, root ast.Node) docStats {
	stats := docStats{headingLevels: make(map[int]int)}
	languages := make(map[string]bool)

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			stats.headings++
			stats.headingLevels[node.Level]++
		case *ast.Link, *ast.AutoLink:
			stats.links++
		case *ast.FencedCodeBlock:
			stats.codeBlocks++
			if lang := string(node.Language(src)); lang != "" && !languages[lang] {
				languages[lang] = true
				stats.codeLanguages = append(stats.codeLanguages, lang)
			}
		case *ast.CodeBlock:
			stats.codeBlocks++
		case *extast.Table:
			stats.tables++
		}
		return ast.WalkContinue, nil
	})

	stats.words = len(strings.Fields(string(src)))
	return stats
}

func blockText(node *ast.FencedCodeBlock, src []byte) string {
	var out strings.Builder
	for i := 0; i < node.Lines().Len(); i++ {
		line := node.Lines().At(i)
		out.Write(line.Value(src))
	}
	return strings.TrimRight(out.String(), "\n")
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
