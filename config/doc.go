// Package config loads the engine configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order. The resulting
// Config is treated as immutable: components receive their section at
// construction and never read ambient state mid-turn.
package config
