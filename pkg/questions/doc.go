/*
Package questions implements the Pending-Question Registry: an in-memory map
of a blocked worker's outstanding clarification request, keyed by minion id.

It follows the same guarded-map-plus-sweep shape as Warren's
pkg/manager.TokenManager (lock around reads/writes, a periodic
CleanupExpired pass), generalised to the registry's own eviction rules: drop
unconditionally on worker completion, drop on TTL regardless of answered
state.
*/
package questions
