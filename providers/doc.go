// Package providers defines the engine's external collaborators (CRM,
// messaging, calendar) as narrow interfaces with HTTP implementations and
// in-memory fakes for tests. Collaborator failures surface as retryable
// COLLABORATOR_UNAVAILABLE errors; the engine never blocks a qualification
// turn on them.
package providers
