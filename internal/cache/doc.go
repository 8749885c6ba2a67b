// Package cache wraps the shared Redis store used by the L2 conversation
// cache, the dedup guard, handoff cooldowns, and per-contact rate counters.
// This package is internal and should not be imported by external projects.
package cache
