package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
)

var runCmd = &cobra.Command{
	Use:   "run [operation] [path]",
	Short: "Run a document operation",
	Long: `Run one document operation against a file and print the result.

Operations:
  overview       quick summary and metadata
  structure      section and heading hierarchy
  deep-analysis  thorough content analysis
  extraction     pull content out (optionally pages or targets)
  navigation     find where content matching --query appears

Examples:
  docsray run overview report.pdf
  docsray run structure notes.md
  docsray run extraction report.pdf --pages 2-5 --targets tables
  docsray run navigation report.pdf --query "quarterly revenue"
  docsray run overview scan.png --provider ocr --fresh`,
	Args: cobra.ExactArgs(2),
	RunE: runOperation,
}

// Flags for the run command.
var (
	runQuery        string
	runPages        string
	runDepth        string
	runTargets      []string
	runInstructions string
	runProvider     string
	runFresh        bool
	runJSON         bool
)

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "search query (navigation)")
	runCmd.Flags().StringVar(&runPages, "pages", "", "page range, e.g. 2-5 or 3")
	runCmd.Flags().StringVar(&runDepth, "depth", "", "analysis depth: quick, standard, deep")
	runCmd.Flags().StringSliceVar(&runTargets, "targets", nil, "extraction targets, e.g. tables,links")
	runCmd.Flags().StringVar(&runInstructions, "instructions", "", "free-form analysis guidance")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "force a specific provider")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "bypass cached results")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the raw result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runOperation(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	pages, err := parsePageRange(runPages)
	if err != nil {
		return err
	}

	req := driving.Request{
		Path:      args[1],
		Operation: domain.Operation(args[0]),
		Params: domain.Params{
			Pages:        pages,
			Depth:        runDepth,
			Query:        runQuery,
			Targets:      runTargets,
			Instructions: runInstructions,
		},
		Provider: runProvider,
		Fresh:    runFresh,
	}

	result, err := documentService.Perform(cmd.Context(), req)
	if err != nil {
		return err
	}

	if runJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, result *domain.Result) {
	source := result.Provider
	if result.FromCache {
		source += " (cached)"
	}
	cmd.Printf("Provider: %s\n", source)

	for _, attempt := range result.Fallbacks {
		cmd.Printf("Fell back past %s: %s\n", attempt.Provider, attempt.Reason)
	}
	cmd.Println()

	if result.Content != "" {
		cmd.Println(result.Content)
	}

	for _, section := range result.Sections {
		indent := strings.Repeat("  ", max(section.Level-1, 0))
		if section.Page > 0 {
			cmd.Printf("%s%s (page %d)\n", indent, section.Title, section.Page)
		} else {
			cmd.Printf("%s%s\n", indent, section.Title)
		}
	}

	for _, match := range result.Matches {
		switch {
		case match.Page > 0:
			cmd.Printf("page %d, line %d: %s\n", match.Page, match.Line, match.Context)
		case match.Line > 0:
			cmd.Printf("line %d: %s\n", match.Line, match.Context)
		default:
			cmd.Printf("%s\n", match.Context)
		}
	}

	if len(result.Metadata) > 0 {
		cmd.Println()
		for _, key := range sortedKeys(result.Metadata) {
			cmd.Printf("  %s: %v\n", key, result.Metadata[key])
		}
	}
}

// parsePageRange parses "2-5" or "3" into a page range. Empty input means no
// restriction.
func parsePageRange(s string) (*domain.PageRange, error) {
	if s == "" {
		return nil, nil
	}

	start, end, found := strings.Cut(s, "-")
	r := &domain.PageRange{}
	var err error
	if r.Start, err = strconv.Atoi(strings.TrimSpace(start)); err != nil {
		return nil, fmt.Errorf("invalid page range %q", s)
	}
	if !found {
		r.End = r.Start
		return r, nil
	}
	if strings.TrimSpace(end) == "" {
		return r, nil
	}
	if r.End, err = strconv.Atoi(strings.TrimSpace(end)); err != nil || r.End < r.Start {
		return nil, fmt.Errorf("invalid page range %q", s)
	}
	return r, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
