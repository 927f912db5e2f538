/*
Package inventory resolves which datacenter a storage host lives in.

The inventory package answers one question, DC(host), that the balancer
asks constantly: couples must span datacenters, so composing a couple,
listing groups by location and judging replacement candidates all need the
host-to-datacenter mapping. The mapping lives outside the storage fleet
(in configuration or in an external host directory), and resolution is
lazy: the topology model never stores the datacenter on the host entity.

# Architecture

	┌─────────────────── INVENTORY ────────────────────┐
	│                                                  │
	│  balancer ──► DC(ctx, hostAddr)                  │
	│                    │                             │
	│  ┌─────────────────▼──────────────────┐          │
	│  │            Cached                  │          │
	│  │  1. in-memory map (hot path)       │          │
	│  │  2. bolt bucket inventory_dc       │          │
	│  │     (restart-warm, TTL-bounded)    │          │
	│  │  3. delegate to the inner driver   │          │
	│  └─────────────────┬──────────────────┘          │
	│                    │                             │
	│        ┌───────────┴───────────┐                 │
	│        ▼                       ▼                 │
	│  ┌───────────┐        ┌──────────────────┐       │
	│  │  Static   │        │  HTTPDirectory   │       │
	│  │  config   │        │  reverse-DNS +   │       │
	│  │  mapping  │        │  GET /hosts/<h>  │       │
	│  └───────────┘        └──────────────────┘       │
	└──────────────────────────────────────────────────┘

# Drivers

Static:
  - dc_map from the configuration file, keyed by host address
  - optional default_dc for unmapped hosts
  - no default and no mapping is an error

HTTPDirectory:
  - reverse-resolves the host address to its hostname
    (addresses that are not IPs are taken as hostnames directly)
  - GET <directory_url>/hosts/<hostname>
  - expects {"datacenter": "..."}

Cached:
  - decorates either driver
  - in-memory map answers repeated lookups within a process
  - bolt bucket inventory_dc keeps resolutions across restarts
  - records carry their resolution time; cache_valid_time bounds
    their age, zero disables expiry
  - failures are never cached

# Usage

	inv, err := inventory.New(cfg.Inventory)
	if err != nil {
		return err
	}

	dc, err := inv.DC(ctx, "10.10.1.5")
	if err != nil {
		// surfaces as a handler error; sweeps never need the DC
	}

# Failure Semantics

A host the inventory cannot place fails the operation that asked: a
couple_groups call that cannot prove datacenter diversity must not
guess. Reconciliation sweeps never consult the inventory, so a broken
directory degrades couple composition but not model maintenance.

# Integration Points

This package integrates with:

  - pkg/balancer: DC diversity in couple_groups, groups_by_dc queries
  - pkg/config: driver selection and cache tunables
  - cmd/mastermind: cache lifecycle (Close on shutdown)
*/
package inventory
