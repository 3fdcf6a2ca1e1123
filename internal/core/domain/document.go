package domain

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a document format as determined by cheap sniffing
// (extension plus magic bytes). The core never parses content beyond this.
type Format string

// Known document formats.
const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatImage    Format = "image"
	FormatUnknown  Format = "unknown"
)

// Identity is a stable fingerprint of a document's content, used as the
// cache partition key. Two identities are equal iff they refer to
// byte-identical content as observed at request time.
type Identity string

// Document describes a document under processing. It carries everything
// provider selection needs; the bytes themselves stay on disk.
type Document struct {
	// Path is the resolved absolute path to the document.
	Path string

	// Identity is the content fingerprint (see Identity).
	Identity Identity

	// Format is the sniffed document format.
	Format Format

	// Size is the document size in bytes.
	Size int64

	// ModTime is the file modification time observed at fingerprinting.
	ModTime time.Time

	// Scanned marks documents with raster-only content (no text layer),
	// which biases selection towards OCR-capable providers.
	Scanned bool
}

// extFormats maps file extensions to formats for the fast path.
var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".xhtml":    FormatHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".text":     FormatText,
	".png":      FormatImage,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".tif":      FormatImage,
	".tiff":     FormatImage,
	".bmp":      FormatImage,
}

// DetectFormat sniffs the document format from the file name and the first
// bytes of content. The extension wins when it is recognised; magic bytes
// settle the rest.
func DetectFormat(path string, head []byte) Format {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return FormatPDF
	case bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G'}):
		return FormatImage
	case bytes.HasPrefix(head, []byte{0xFF, 0xD8, 0xFF}):
		return FormatImage
	case looksLikeHTML(head):
		return FormatHTML
	case isMostlyText(head):
		return FormatText
	default:
		return FormatUnknown
	}
}

func looksLikeHTML(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) ||
		bytes.HasPrefix(lower, []byte("<html"))
}

// isMostlyText reports whether the sample looks like plain text rather than
// binary data. A NUL byte or a high ratio of control characters disqualifies.
func isMostlyText(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	control := 0
	for _, b := range head {
		if b == 0 {
			return false
		}
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			control++
		}
	}
	return control*10 < len(head)
}
