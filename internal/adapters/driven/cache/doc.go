// Package cache implements the result cache: a bounded in-memory LRU layer
// over an optional on-disk layer laid out as one directory per document
// identity. The disk layer is the source of truth; the memory layer is a
// read-through cache with write-through on Put.
package cache
