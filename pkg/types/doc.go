/*
Package types defines the core data structures shared across the Overlord:
worker records, work history, pending questions, queue items, evaluation
records, and the immutable configuration snapshot.

These types are persisted by pkg/storage, mutated by pkg/reporter and
pkg/watchdog, and read by pkg/overlord to answer chat queries. They carry no behavior beyond small helpers (IsActive, IsTerminal)
and are serialized as JSON for storage and as JSON over the HTTP control
plane.
*/
package types
