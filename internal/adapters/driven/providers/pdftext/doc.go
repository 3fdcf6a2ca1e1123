// Package pdftext serves PDF documents from their embedded text layer. It is
// the fast default for digital PDFs; scanned PDFs without a text layer fall
// through to OCR-capable providers.
package pdftext
