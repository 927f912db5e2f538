/*
Package config loads and validates the agent configuration.

Configuration is one YAML file applied on top of built-in defaults,
read once at startup and never mutated afterwards. Durations use the
Prometheus model syntax ("60s", "5m"). Validate rejects configurations
the agent cannot run with; everything else falls back to a default
that works against an in-memory fleet, so a bare "mastermind agent"
starts without any file at all.
*/
package config
