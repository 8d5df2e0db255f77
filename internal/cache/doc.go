// Package cache provides a process-local TTL cache keyed by category and an
// ordered list of identifier strings. Each category carries its own TTL, and
// invalidation can target a single entry, an id prefix, or a whole category.
//
// The cache is intentionally instance-local: in a horizontally scaled
// deployment each process computes misses independently.
package cache
