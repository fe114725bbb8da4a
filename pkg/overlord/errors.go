package overlord

import "errors"

// Sentinel errors returned by the dispatch pipeline. Callers (chat command
// handlers, the Cron Scheduler's DispatchFunc) match these with errors.Is to
// decide how to phrase a rejection back to a human or simply skip an item.
var (
	ErrRuntimeUnavailable = errors.New("overlord: container runtime unavailable")
	ErrConcurrencyCap     = errors.New("overlord: concurrency cap reached")
	ErrAlreadyActive      = errors.New("overlord: issue already has an active worker")
)
