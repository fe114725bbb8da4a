/*
Package queue implements the Queue Scanner: it surfaces ready-to-work
issues from GitHub and applies best-effort label transitions as workers
move through in-progress, in-review, and failed states.

GitHubScanner is grounded on the google/go-github client used elsewhere in
this corpus for issue/label manipulation; on any transient error (rate
limit, 5xx, timeout) Scan returns an empty result and logs a warning rather
than propagating into the Orchestrator, matching the TransientExternal
handling the rest of this system uses for queue and chat I/O.
*/
package queue
