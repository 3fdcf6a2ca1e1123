package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

func TestProvider_Capabilities(t *testing.T) {
	p := New(nil)
	desc := p.Capabilities()

	assert.Equal(t, Name, p.Name())
	assert.True(t, desc.SupportsFormat(domain.FormatImage))
	assert.False(t, desc.SupportsFormat(domain.FormatPDF))
	assert.True(t, desc.Features(domain.OpExtraction).Has(domain.FeatureOCR))
	assert.False(t, desc.SupportsOperation(domain.OpStructure))
	assert.Equal(t, domain.PerfSlow, desc.Perf)
}

func TestProvider_LanguageDefaults(t *testing.T) {
	assert.Equal(t, DefaultLanguages, New(nil).languages)
	assert.Equal(t, []string{"deu", "eng"}, New([]string{"deu", "eng"}).languages)
}

func TestProvider_CanProcess(t *testing.T) {
	p := New(nil)

	assert.True(t, p.CanProcess(domain.Document{Format: domain.FormatImage}))
	assert.False(t, p.CanProcess(domain.Document{Format: domain.FormatText}))
}
