/*
Package cron implements the Cron Scheduler: it holds a cron expression,
sleeps in bounded slices so shutdown stays responsive, and on each fire
runs Sweep — dispatching queued work up to the available concurrency slots.

The Start/Stop/run loop shape is grounded on cuemby-warren/pkg/scheduler's
Scheduler (ticker-driven, select over ticker/stopCh, log-and-continue on
cycle failure); the cron-expression parsing itself uses
github.com/robfig/cron/v3, named rather than pack-grounded since no example
repo schedules on a cron expression — Warren's own scheduler runs on a
fixed ticker, not a user-configurable schedule.
*/
package cron
