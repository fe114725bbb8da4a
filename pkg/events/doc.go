/*
Package events provides an in-memory pub/sub broker on which the components
that observe a worker's lifecycle (Reporter Endpoint, Watchdog, and the
Orchestrator's dispatch and stop paths) publish events. No package in this
repository subscribes to it. Publish never blocks: a stopped broker or a
full broker buffer drops the event, and each subscriber has its own
buffered channel, where a full buffer drops the event rather than stalling
the broker's distribution loop.
*/
package events
