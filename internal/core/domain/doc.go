// Package domain contains the core types for document operations,
// provider capabilities, and result caching.
//
// Types here are pure values with no I/O. Services and adapters depend on
// this package; it depends on nothing outside the standard library.
package domain
