// Package types defines the core domain model shared across the engine:
// contacts, messages, qualification state, handoff events, and the unified
// error type.
package types
