/*
Package topology is the in-memory model of the storage fleet.

Everything the coordinator knows about the fleet lives here: hosts,
the storage nodes running on them, the groups those nodes serve and
the couples the groups are bound into. The model is rebuilt from node
statistics and metadata keys on every reconciliation pass and holds no
durable state of its own; what must survive a restart is written to
the storage fleet or to the infrastructure store, never kept here.

# Architecture

Four entity kinds, layered bottom-up, with derived statuses flowing
upwards:

	┌───────────────────── TOPOLOGY MODEL ─────────────────────┐
	│                                                          │
	│   Couple "1:2:3"   ← assembled from group metadata       │
	│     ├── status: OK / FROZEN / RO / BAD / INIT            │
	│     │                                                    │
	│   Group 1, 2, 3    ← named by statistics rows            │
	│     ├── status: COUPLED / RO / BAD / INIT                │
	│     ├── meta: couple members + namespace (msgpack)       │
	│     │                                                    │
	│   Node "host:1025" ← one backend process                 │
	│     ├── status: OK / RO / STALLED / BAD / INIT           │
	│     ├── stat: space, load, RPS estimates                 │
	│     │                                                    │
	│   Host "10.0.0.1"  ← one machine, many nodes             │
	└──────────────────────────────────────────────────────────┘

State is the single synchronized owner of the model. All mutation goes
through it: UpdateStatistics ingests a statistics batch, ApplyGroupMeta
and ApplyCoupleMeta install freshly read metadata, EnsureCouple and
DestroyCouple maintain couple bindings. Accessors return deep copies,
so a caller can never observe a half-applied update or mutate the
model behind the lock's back.

# Statuses

Statuses are derived, never stored authoritatively. A node's status
follows its latest statistics row (read-only flag, stat age against
the stall timeout); a group's status folds its nodes' statuses with
its metadata; a couple's status folds its members' statuses with the
consistency of their metadata and the frozen flag. The Update*Status
methods recompute one level; UpdateStatusRecursive recomputes a
group's couple after the group, which is what metadata sweeps use.

# Metadata

GroupMeta is the versioned msgpack blob stored under each group's
symmetric-groups key: the couple member list plus the namespace.
ParseGroupMeta accepts the bare legacy list format as version 1 and
the tagged struct as version 2; PackGroupMeta always writes version 2.
CoupleMeta is the couple metakey blob and currently carries only the
frozen flag.

# Statistics

NodeStat condenses one raw counter row into the numbers balancing
needs: total and free space, load average, and exponentially smoothed
read/write RPS with their estimated maxima. Add merges stats across a
group's nodes; Bottleneck takes the worst-case view across a couple's
groups. Smoothing keeps one reload's spike from swinging the weights.

# Integration Points

  - pkg/reconciler: feeds UpdateStatistics and the metadata sweeps
  - pkg/balancer: reads the model and maintains couples
  - pkg/balancelogic: consumes NodeStat when weighing couples
  - pkg/metrics: samples entity counts by status
*/
package topology
