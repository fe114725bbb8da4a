/*
Package runtime provides the Container Runtime Adapter: spawning one
container per dispatched minion, tracking its lifecycle, and reconciling the
State Store's view of active workers against what is actually running.

ContainerdRuntime implements the Runtime interface against a real
containerd daemon, following the same client/namespace/OCI-spec pattern
used elsewhere for container lifecycle management, generalized to inject
the callback URL, correlation id, and language-model credentials a minion
needs rather than a fixed service spec. StubRuntime implements the same
interface entirely in memory for STUB_MODE deployments and tests, with
Status tracking a small state machine seeded by Spawn, moved to exited by
Kill, and cleared for exited containers by CleanupDead.
*/
package runtime
