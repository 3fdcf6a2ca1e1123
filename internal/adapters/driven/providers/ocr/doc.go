// Package ocr serves raster images (and scanned content routed to it) by
// running Tesseract through gosseract. It is the slow path: selection only
// reaches it when text-layer providers cannot serve the document.
package ocr
