/*
Package config assembles the Overlord's Configuration Snapshot from
environment variables, with an optional YAML file providing defaults that
the environment can still override. It mirrors SwarmConfig.from_env() /
SwarmConfig.validate() from the system this Overlord replaces: Load
assembles the snapshot without validating it, and cmd/overlord calls
Validate on the result before the Orchestrator is built.
*/
package config
