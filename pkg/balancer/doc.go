/*
Package balancer implements the coordinator operations exposed to
operators and proxies: composing couples, breaking and repairing them,
freezing, group number allocation, node detachment and the read-only
topology queries backing the write-weight feed.

The balancer never owns state. It reads the topology model the
reconciler maintains, writes metadata through per-operation storage
sessions, and mirrors successful writes back into the model so the
next query sees them without waiting for a sweep.

# Architecture

	                 worker registry (named handlers)
	                              │
	                              ▼
	  ┌─────────────────────── Balancer ───────────────────────┐
	  │                                                        │
	  │  queries            mutators             allocation    │
	  │  get_groups         couple_groups        get_next_     │
	  │  get_group_info     break_couple         group_number  │
	  │  get_group_weights  repair_groups                      │
	  │  groups_by_dc       freeze / unfreeze                  │
	  │  ...                group_detach_node                  │
	  └──────┬──────────────────┬─────────────────────┬────────┘
	         │ read             │ write + mirror      │ read-then-write
	         ▼                  ▼                     ▼
	   topology.State     elliptics sessions     metadata couple

Mutating operations hold one balancer-wide mutex so their
read-check-write sequences cannot interleave with each other. The
topology model has its own lock; reads taken outside the mutex may
trail the reconciler by one sweep, which the protocol tolerates.

# Couple Composition

couple_groups draws one healthy uncoupled group per datacenter:

	pool      = uncoupled groups whose nodes are all OK
	mandatory = operator-pinned ids, each consuming its datacenter
	rest      = lowest id from each remaining datacenter, in
	            datacenter name order

The couple metadata blob is then written into every member. A write
failure midway leaves the already-written members in place; the
operator resolves with break_couple --force.

# Weights

get_group_weights buckets the OK couples by (namespace, size) and
weighs each bucket with the balance logic. Frozen couples, couples
with stale statistics and couples below the free-space thresholds
carry no weight.

# Integration Points

  - pkg/topology: the model all queries read
  - pkg/elliptics: metadata reads and writes
  - pkg/balancelogic: weight function and closed-couple predicate
  - pkg/inventory: datacenter resolution for couple composition
  - pkg/namespace: namespace settings handlers
  - pkg/infrastructure: group history for get_group_history and
    detachment records
  - pkg/events: couple lifecycle and detachment events
  - pkg/worker: handler registration
*/
package balancer
