// Package taskq runs collaborator side effects (CRM tag sync, notifications,
// deferred sends) on a bounded queue so the qualification turn never waits on
// an external service. This package is internal and should not be imported by
// external projects.
package taskq
