// Package services implements the core application logic: the provider
// registry with capability-based scoring, and the orchestrator that selects
// providers, consults the result cache, and falls back on failure.
package services
