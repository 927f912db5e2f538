/*
Package log provides structured logging for Mastermind using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Architecture

One global logger, refined into child loggers that carry context:

	┌──────────────────── LOGGING SYSTEM ─────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                   │          │
	│  │  - Zerolog instance                        │          │
	│  │  - Initialized via log.Init()              │          │
	│  │  - Thread-safe for concurrent use          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Context Loggers                  │          │
	│  │  - WithComponent("reconciler")             │          │
	│  │  - WithGroup(42)                           │          │
	│  │  - WithCouple("1:2:3")                     │          │
	│  │  - WithTaskID("load_nodes")                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                      │          │
	│  │                                            │          │
	│  │  JSON Format:                              │          │
	│  │  {                                         │          │
	│  │    "level": "info",                        │          │
	│  │    "component": "balancer",                │          │
	│  │    "couple_id": "1:2:3",                   │          │
	│  │    "time": "2026-08-25T10:30:00Z",         │          │
	│  │    "message": "Built couple"               │          │
	│  │  }                                         │          │
	│  │                                            │          │
	│  │  Console Format:                           │          │
	│  │  10:30AM INF Built couple component=balancer │        │
	│  └────────────────────────────────────────────┘          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init() in the agent command
  - Accessible from all Mastermind packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: per-key reads, queue scheduling decisions
  - Info: reloads, couple builds, namespace changes
  - Warn: unreadable metadata, skipped records
  - Error: failed storage writes, reconciliation errors
  - Fatal: critical errors (process exits)

Configuration:
  - Level: filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: name the subsystem emitting the log
  - WithGroup: add group_id context
  - WithCouple: add couple_id context
  - WithTaskID: add timed-queue task context

# Usage

Initializing the logger:

	import "github.com/cuemby/mastermind/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("Topology model loaded")
	log.Warn("Stat batch was empty")
	log.Error("Failed to write couple metadata")

Structured logging:

	log.Logger.Info().
		Str("couple", "1:2:3").
		Int("groups", 3).
		Msg("Couple assembled")

	log.Logger.Error().
		Err(err).
		Int("group", 42).
		Msg("Failed to read symmetric groups")

Component loggers:

	recLog := log.WithComponent("reconciler")
	recLog.Info().Msg("Start loading units")

	groupLog := log.WithGroup(42)
	groupLog.Warn().Msg("Node set changed")

# Integration Points

This package integrates with:

  - pkg/reconciler: logs reloads and metadata sweeps
  - pkg/balancer: logs couple operations and repairs
  - pkg/namespace: logs settings changes
  - pkg/worker: logs handler failures
  - pkg/transport: logs request handling
  - pkg/timedqueue: logs task scheduling
  - cmd/mastermind: initializes the logger from configuration

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err()
  - Include context (group id, couple id, task id)

Don't:
  - Log whole statistics batches (use counts)
  - Use Debug level in production
  - Concatenate values into the message (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
