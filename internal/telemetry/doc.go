// Package telemetry initializes the OpenTelemetry SDK for traces and metrics.
// When telemetry is disabled, no exporters are created and global providers
// remain noop. This package is internal and should not be imported by
// external projects.
package telemetry
