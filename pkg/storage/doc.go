/*
Package storage provides embedded, transactional persistence for the
Overlord's state: active workers, archived work history, and evaluation
records. It implements the Store interface over bbolt, following the same
bucket-per-table, JSON-per-value layout used throughout this system's
persistent state, extended with a sortable history key so reverse-
chronological queries are a plain cursor scan.

Mutating operations run inside a single bbolt write transaction and
therefore serialise; AddWorker scans the active-workers bucket within that
same transaction to enforce the single-active-worker-per-issue invariant
without a separate index, and RecordCompletion looks the worker up by id in
its transaction, so archiving an id a second time finds nothing and changes
nothing.
*/
package storage
