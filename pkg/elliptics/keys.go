package elliptics

// Well-known keys persisted in the fleet.
const (
	// SymmetricGroupsKey is the per-group metakey naming the group's
	// couple peers. Read with a session scoped to a single group.
	SymmetricGroupsKey = "metabalancer\x00symmetric_groups"

	// MaxGroupKey holds the highest allocated group number as a
	// plain ASCII decimal string.
	MaxGroupKey = "mastermind:max_group"

	// NamespaceSettingsIndex is the secondary index holding per
	// namespace settings blobs.
	NamespaceSettingsIndex = "MM_NAMESPACE_SETTINGS_IDX"

	coupleMetaKeyPrefix = "mastermind:couple_meta:"
)

// CoupleMetaKey is the per-couple auxiliary metakey.
func CoupleMetaKey(coupleID string) string {
	return coupleMetaKeyPrefix + coupleID
}
