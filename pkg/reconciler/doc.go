/*
Package reconciler keeps the in-memory topology model synchronized with
the storage fleet.

The updater is the only writer of the topology model. On a fixed period
it pulls the fleet's monitor counters, folds them into the model, then
sweeps the metadata keys that tie groups into couples. Everything the
balancer handlers serve is a read of the model this package maintains.

# Architecture

One reload cycle fans out into three phases, each re-armed through the
shared timed queue:

	┌────────────────────────────────────────────────────────────┐
	│                      load_nodes                            │
	│               (every nodes_reload_period)                  │
	└────────────────┬───────────────────────────────────────────┘
	                 │ monitor stat rows
	                 ▼
	        ┌─────────────────┐
	        │ UpdateStatistics │  hosts, nodes, groups refreshed
	        └────────┬────────┘
	                 │
	    ┌────────────┴─────────────┐
	    │                          │
	    ▼                          ▼
	┌──────────────────────┐  ┌──────────────────────┐
	│ update_symms_for_    │  │ update_meta_for_     │
	│ groups               │  │ couples              │
	└──────────┬───────────┘  └──────────┬───────────┘
	           │                         │
	           ▼                         ▼
	   group metakeys read        couple metakeys read
	   couples materialized       frozen flags applied

The metadata sweeps read each key in its own session so a slow group
cannot stall the rest; results are then folded into the model
sequentially, peers referenced by a fresh couple first.

# Scheduling

The group and couple sweeps run inline during the synchronous initial
load and as separately queued tasks on periodic reloads. Task ids are
stable, so a forced update replaces the pending periodic reload instead
of stacking a second one:

	updater.ForceNodesUpdate()   // re-queues load_nodes with zero delay

Every reload also shifts the two-slot timestamp window used to derive
the staleness cutoff handed to the balancer: statistics older than
max(elapsed, 3 x reload period) stop contributing weights.

# Side Effects

Beyond the model itself, a successful reload:

  - records each group's node set in the infrastructure history store
  - advances the persisted max group id when the fleet outgrew it
  - flips the "reconciler" health component once the first load lands
  - publishes couple.created / reconcile.completed events

# Integration Points

  - pkg/elliptics: stat log and metakey sessions
  - pkg/topology: the model being maintained
  - pkg/timedqueue: reload and sweep scheduling
  - pkg/balancelogic: receives the dynamic staleness cutoff
  - pkg/infrastructure: group node-set history
  - pkg/events: coordinator event stream
  - pkg/metrics: reconcile counters and the health component
*/
package reconciler
