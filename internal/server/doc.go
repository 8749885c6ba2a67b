// Package server manages the engine's HTTP listener lifecycle: non-blocking
// start, error surfacing, and graceful shutdown. This package is internal and
// should not be imported by external projects.
package server
