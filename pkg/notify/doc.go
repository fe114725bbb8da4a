/*
Package notify implements the Notification Manager: urgent messages post to
chat immediately, everything else accumulates into typed counters and a
per-category buffer until send_digest formats and flushes them.

It is a direct port of nebulus_swarm/overlord/notifications.py's
NotificationManager, posting through a chat.Adapter instead of a bare
SlackBot and guarding the buffer with a mutex instead of relying on a single
asyncio event loop.
*/
package notify
