/*
Package watchdog implements the Watchdog and the separate container-cleanup
loop: a heartbeat-timeout pass that kills and archives stuck workers, and a
container-reconciliation pass that archives workers whose container already
exited or disappeared.

It follows cuemby-warren/pkg/reconciler's ticker-driven Start/Stop/run shape
and its two-pass-per-tick structure (reconcileNodes then
reconcileContainers), re-targeted from cluster nodes and Warren containers
onto Worker Records and minion containers.
*/
package watchdog
