package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

func resetRunFlags() {
	runQuery = ""
	runPages = ""
	runDepth = ""
	runTargets = nil
	runInstructions = ""
	runProvider = ""
	runFresh = false
	runJSON = false
}

func TestRunCmd_Use(t *testing.T) {
	assert.Equal(t, "run [operation] [path]", runCmd.Use)
}

func TestRunCmd_RequiresTwoArgs(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"run", "overview"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestRunCmd_Executes(t *testing.T) {
	mock, cleanup := setupTestServices()
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run", "overview", "/docs/report.pdf"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Provider: pdf-text")
	assert.Contains(t, buf.String(), "a short overview")
	assert.Contains(t, buf.String(), "pages: 3")
	assert.Equal(t, domain.OpOverview, mock.lastRequest.Operation)
	assert.Equal(t, "/docs/report.pdf", mock.lastRequest.Path)
}

func TestRunCmd_PassesFlags(t *testing.T) {
	mock, cleanup := setupTestServices()
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"run", "navigation", "/docs/report.pdf",
		"--query", "revenue",
		"--pages", "2-5",
		"--provider", "pdf-text",
		"--fresh",
	})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	req := mock.lastRequest
	assert.Equal(t, domain.OpNavigation, req.Operation)
	assert.Equal(t, "revenue", req.Params.Query)
	require.NotNil(t, req.Params.Pages)
	assert.Equal(t, domain.PageRange{Start: 2, End: 5}, *req.Params.Pages)
	assert.Equal(t, "pdf-text", req.Provider)
	assert.True(t, req.Fresh)
}

func TestRunCmd_PrintsSectionsAtAnyLevel(t *testing.T) {
	mock, cleanup := setupTestServices()
	defer cleanup()
	defer resetRunFlags()

	// A zero level can arrive from a hand-edited or corrupt disk-cache
	// entry; printing must not choke on it.
	mock.result = &domain.Result{
		Provider:  "pdf-text",
		Operation: domain.OpStructure,
		Sections: []domain.Section{
			{Title: "Untitled", Level: 0},
			{Title: "Introduction", Level: 1, Page: 1},
			{Title: "Background", Level: 2, Page: 2},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run", "structure", "/docs/report.pdf"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Untitled\n")
	assert.Contains(t, buf.String(), "Introduction (page 1)\n")
	assert.Contains(t, buf.String(), "  Background (page 2)\n")
}

func TestRunCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run", "overview", "/docs/report.pdf", "--json"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"provider": "pdf-text"`)
	assert.Contains(t, buf.String(), `"content": "a short overview"`)
}

func TestRunCmd_SurfacesErrors(t *testing.T) {
	mock, cleanup := setupTestServices()
	defer cleanup()
	defer resetRunFlags()

	mock.result = nil
	mock.err = &domain.AllProvidersFailedError{
		Operation: domain.OpOverview,
		Attempts: []domain.Attempt{
			{Provider: "pdf-text", Reason: "timeout", Class: domain.ClassTransient},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"run", "overview", "/docs/report.pdf"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf-text")
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *domain.PageRange
		wantErr  bool
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single page", input: "3", expected: &domain.PageRange{Start: 3, End: 3}},
		{name: "range", input: "2-5", expected: &domain.PageRange{Start: 2, End: 5}},
		{name: "open end", input: "4-", expected: &domain.PageRange{Start: 4}},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "end before start", input: "5-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageRange(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
