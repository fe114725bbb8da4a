/*
Package command implements the Command Parser: it turns free-form chat text
into a structured Command the Orchestrator's dispatch handlers can act on.

It is grounded on nebulus_swarm/overlord/main.py's command grammar ("work on
owner/repo#42", "stop <minion-id>", bare "#42" shorthand, a configurable
default repo) re-expressed as a regexp-driven Go parser instead of the
original's (unavailable in this pack) command_parser.py.
*/
package command
