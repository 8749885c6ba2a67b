// Package metrics collects Prometheus metrics for the qualification and
// handoff pipeline. This package is internal and should not be imported by
// external projects.
package metrics
