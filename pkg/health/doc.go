/*
Package health provides a small HTTP health-check primitive. The Cron
Scheduler's Sweep uses HTTPChecker to warm up the configured language-model
endpoint before dispatching workers, bounded by LLM_WARMUP_TIMEOUT_SECONDS;
a failed warm-up is logged as a warning and does not block the sweep.
*/
package health
