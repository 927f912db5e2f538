/*
Package namespace is the registry of logical tenants.

Every couple belongs to exactly one namespace, and each namespace carries
settings that shape how couples are composed and written for it: how many
groups a couple must have, how many copies must succeed before a write is
acknowledged, and optionally a static couple pinning the namespace to one
fixed group set. The registry validates these settings and persists them
in the metadata couple, next to the other coordinator bookkeeping keys.

# Persistence

Settings are MessagePack blobs written under per-namespace keys; the
index key MM_NAMESPACE_SETTINGS_IDX holds the list of registered names so
the registry can enumerate namespaces without scanning:

	MM_NAMESPACE_SETTINGS_IDX     ["web", "photos"]
	mastermind:ns_settings:web    {namespace, groups-count, ...}
	mastermind:ns_settings:photos {namespace, groups-count, ...}

Each settings blob carries its namespace name, so a record read in
isolation still says what it configures. Setup replaces settings
wholesale and appends to the index on first registration; nothing is
ever removed from the index.

# Validation

Setup refuses settings that could not be acted on:

  - the name must match ^[A-Za-z0-9][A-Za-z0-9_\-]*[A-Za-z0-9]$
  - groups-count must be positive
  - success-copies-num must be any, quorum or all
  - a static-couple must name an existing couple of exactly
    groups-count groups

A refused Setup writes nothing.

# Usage

	registry := namespace.NewRegistry(client, cfg.Metadata, state)

	err := registry.Setup(ctx, "web", namespace.Settings{
		GroupsCount:      3,
		SuccessCopiesNum: namespace.CopiesQuorum,
	})

	settings, err := registry.Get(ctx, "web")
	all, err := registry.All(ctx)

# Integration Points

This package integrates with:

  - pkg/balancer: namespace_setup, get_namespaces and settings handlers
  - pkg/elliptics: metadata couple sessions and the index key
  - pkg/topology: static couple existence checks
*/
package namespace
