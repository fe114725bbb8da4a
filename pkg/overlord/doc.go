/*
Package overlord implements the Orchestrator: the composition root that
wires the State Store, Container Runtime Adapter, Queue Scanner, Chat
Adapter, Notification Manager, Pending-Question Registry, Reporter Endpoint,
Watchdog, Cleanup loop and Cron Scheduler into one process, and owns the
dispatch pipeline shared by chat WORK commands and cron sweeps.

Grounded on cuemby-warren/cmd/warren/main.go's cluster-init composition
(construct manager → scheduler → reconciler → metrics collector → API
server → background goroutines → wait on signal → ordered shutdown), with
each "manager" replaced by this spec's own component set. Cyclic imports
between overlord and its collaborators are avoided the way spec.md's
redesign flags require: the Cron Scheduler holds a DispatchFunc, the
Reporter Endpoint holds a Paused func() bool, and the Chat Adapter holds a
narrow Handlers struct — none of them import this package.
*/
package overlord
