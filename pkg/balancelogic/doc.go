/*
Package balancelogic decides how much write traffic each couple deserves.

The balancer's get_group_weights handler buckets healthy couples by
namespace and size and hands each bucket to RawBalance, which returns the
couples that can actually take writes, heaviest first. Everything else in
this package exists to make that one decision sound: the free-space
thresholds that close a full couple, and the staleness cutoff that keeps
a dead reconciler from handing out weights based on ancient statistics.

# Architecture

	┌───────────────── BALANCELOGIC ─────────────────┐
	│                                                │
	│  reconciler ──► SetDynamicTooOldAge(age)       │
	│                        │ (after every reload)  │
	│                        ▼                       │
	│                 ┌─────────────┐                │
	│                 │   Config    │                │
	│                 │ thresholds  │                │
	│                 │ + cutoff    │                │
	│                 └──────┬──────┘                │
	│                        │                       │
	│  balancer ──► RawBalance(now, candidates,      │
	│                         cfg, filter)           │
	│                        │                       │
	│               filter → staleness → closed      │
	│                        │                       │
	│                        ▼                       │
	│               entries, weight-descending       │
	└────────────────────────────────────────────────┘

# Weighing

A candidate couple carries its bottleneck statistics: the minimum free
space and throughput ceiling across its member groups. The weight blends
two signals:

  - relative free space, scaled to dominate (an empty couple always
    outweighs a fuller one)
  - spare write throughput, as a tiebreaker among equally-empty couples
    so writes spread instead of herding onto one target

Couples below the free-space thresholds are closed for writes and
dropped from the output entirely, as are couples whose statistics are
older than the dynamic cutoff. Ties are broken by couple id, so a given
input set always yields the same order.

# Staleness

The reconciler calls SetDynamicTooOldAge after each reload with
max(reload gap, 3x the reload period). While reloads run on schedule the
cutoff hovers near three periods; when a reload stalls, the cutoff grows
with the gap so the statistics already ingested stay usable instead of
aging out all at once. A zero cutoff (before the first reload completes)
disables the staleness check.

# Usage

	cfg := balancelogic.NewConfig(c.Balancer.MinFreeSpace, c.Balancer.MinFreeSpaceRelative)

	entries := balancelogic.RawBalance(time.Now(), candidates, cfg, func(c balancelogic.Candidate) bool {
		return len(c.IDs) == size
	})

# Integration Points

This package integrates with:

  - pkg/balancer: weight buckets in get_group_weights, closed predicate
    in get_closed_groups
  - pkg/reconciler: staleness cutoff advancement after reloads
  - pkg/topology: NodeStat bottleneck snapshots as weighing input
*/
package balancelogic
