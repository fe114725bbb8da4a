/*
Package log provides structured logging for the Overlord using zerolog.

It wraps zerolog with component- and entity-specific child loggers, a
global instance initialized once from the Configuration Snapshot, and a
correlation-id helper that threads a single worker's /minion/report
correlation id through a call chain via context.Context, so every log
line produced while handling one report can be grepped out of a shared
stream.

# Usage

	log.InitFromConfig(cfg)
	log.Info("overlord starting")

	workerLog := log.WithWorkerID(worker.ID)
	workerLog.Info().Str("repo", worker.Repo).Msg("dispatched")

	ctx = log.ContextWithCorrelationID(ctx, report.CorrelationID)
	log.FromContext(ctx).Debug().Msg("processing heartbeat")
*/
package log
