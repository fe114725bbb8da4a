/*
Package chat implements the Chat Adapter over Slack: channel messages and
mentions are forwarded to the Command Parser, thread replies are matched
against the Pending-Question Registry, and outbound posts return the
thread_ref the rest of the system uses to correlate replies.

It is grounded on slack_bot.py's Socket Mode event handling (ignore the
bot's own messages, only honour channel messages from the configured
channel, honour mentions anywhere, special-case a bare "ping") re-expressed
with slack-go/slack's socketmode client instead of slack_bolt's AsyncApp.
*/
package chat
