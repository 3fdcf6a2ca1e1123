// Package markdown serves Markdown and plain-text documents by parsing them
// into an AST, giving exact heading structure and cheap full-text operations.
package markdown
