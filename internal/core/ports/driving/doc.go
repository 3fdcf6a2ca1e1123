// Package driving defines the interfaces through which callers drive the
// core: the document service consumed by the MCP server and the CLI.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driving
