/*
Package metrics defines and registers the Overlord's Prometheus metrics:
active-worker gauges, dispatch/completion/event counters, sweep and queue
scan latency histograms, and a generic component health tracker backing
the /ready and /live handlers the Reporter Endpoint mounts.

Collector periodically samples the State Store into the gauge metrics;
everything else is updated inline by the component that owns the event
(a dispatch, a completion, a reporter event, a watchdog timeout).
*/
package metrics
