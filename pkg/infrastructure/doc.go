/*
Package infrastructure keeps the durable history of every storage group.

The topology model is rebuilt from the fleet on every reload and remembers
nothing; this package is where the coordinator writes down what it must not
forget. Each group accumulates an append-only list of records in BoltDB:
automatic snapshots of its node set taken whenever reconciliation sees the
set change, and detach records written when an operator removes a node.
The history is what get_group_history serves and what lets an operator
reconstruct where a group's replicas have lived.

# Architecture

	┌───────────────── INFRASTRUCTURE ─────────────────┐
	│                                                  │
	│  reconciler ──► RecordNodes(group, nodes)        │
	│                   │  (append when set changed)   │
	│  balancer ────► RecordDetach(group, nodes, addr) │
	│                   │  (always appended)           │
	│                   ▼                              │
	│       ┌───────────────────────────┐              │
	│       │  bucket group_history     │              │
	│       │  key: group id ++ seq     │              │
	│       │  val: JSON Record         │              │
	│       └───────────┬───────────────┘              │
	│                   │                              │
	│  balancer ◄── History(group)  (append order)     │
	└──────────────────────────────────────────────────┘

# Records

Every record carries:

  - id: unique record identity (UUID)
  - group_id: the group the record belongs to
  - nodes: the group's node set, sorted
  - ts: unix time the record was written
  - kind: auto (reconciler snapshot) or detach (operator action)
  - reason: human-readable cause

Auto records are deduplicated: a reload that finds the same node set as
the newest record writes nothing, so a stable group's history stays one
record long no matter how many reloads pass over it. Detach records are
always appended, since each operator action is worth a line.

# Usage

	store, err := infrastructure.New(cfg.Infrastructure.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// During a reload sweep:
	if _, err := store.RecordNodes(group.ID, group.NodeAddrs); err != nil {
		logger.Error().Err(err).Int("group", group.ID).Msg("History write failed")
	}

	// Serving get_group_history:
	records, err := store.History(groupID)

# Ordering

Record keys are the big-endian group id followed by the bucket sequence
number, so a cursor scan over a group's prefix yields its records in the
order they were appended. Histories of different groups never interleave.

# Integration Points

This package integrates with:

  - pkg/reconciler: automatic node-set snapshots during reload sweeps
  - pkg/balancer: detach records and the get_group_history handler
  - cmd/mastermind: database lifecycle (open at start, Close on shutdown)
*/
package infrastructure
