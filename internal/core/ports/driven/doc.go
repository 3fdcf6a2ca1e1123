// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Provider: a document-processing backend implementing the fixed
//     operation contract
//   - ResultCache: result caching keyed by document identity
//
// # Optional Interfaces
//
//   - DocumentWatcher: invalidates cache entries when a served document
//     changes on disk. Without it, stale entries age out via TTL only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter or provider package
package driven
