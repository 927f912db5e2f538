/*
Package elliptics is the client boundary to the storage fleet.

The coordinator talks to storage through two small interfaces: a
Client that owns the fleet connection, and Sessions minted from it.
A session is configured at the call site with a timeout and an
explicit group set, used for a handful of reads and writes, and
dropped. Nothing above this package knows how bytes reach the fleet.

# Sessions

Every operation picks its own blast radius: the reconciler reads the
symmetric-groups key on a session bound to one group at a time, while
metadata bookkeeping runs on sessions bound to the metadata couple.
ReadData returns ErrNotFound for keys absent from every bound group;
callers branch on it with errors.Is because an absent key is often a
legal state (no metadata yet, no namespace index yet) rather than a
failure.

# Statistics

StatLogCount returns one raw counter row per storage node; StatLog is
the legacy fallback the reconciler tries when the counting variant
fails. Rows carry the address, group ids served, disk counters and
command counters that pkg/topology condenses into NodeStat.

# Keys

The well-known coordinator keys live here so every package spells
them identically: the symmetric-groups key written into each member
group, the couple metakeys, the max_group bookkeeping key and the
namespace settings index.

# Drivers

New selects the implementation by configuration. Inmem is a complete
in-memory fleet used by the agent's inmem driver and by tests: it
stores per-group key/value payloads, serves seeded statistics rows
and honors session group binding, which is enough to run the whole
coordinator against it.
*/
package elliptics
