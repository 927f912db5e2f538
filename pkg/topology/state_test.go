package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mastermind/pkg/elliptics"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestState() (*State, *fakeClock) {
	state := NewState(120 * time.Second)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	state.now = clock.Now
	return state, clock
}

// buildCouple ingests one node per group and installs agreeing v2
// metadata, leaving the couple in OK state.
func buildCouple(t *testing.T, state *State, clock *fakeClock, ids []int, namespace string) *Couple {
	t.Helper()

	for i, gid := range ids {
		addr := nodeAddr(i)
		state.UpdateStatistics([]elliptics.StatRow{testRow(addr, gid, 100, 4096, 50, 500, 0, 0)})
	}

	blob, err := PackGroupMeta(&GroupMeta{Version: 2, Couple: ids, Namespace: namespace})
	require.NoError(t, err)
	for _, gid := range ids {
		require.NoError(t, state.ApplyGroupMeta(gid, blob))
	}

	couple, err := state.EnsureCouple(ids)
	require.NoError(t, err)

	status, ok := state.UpdateCoupleStatus(couple.ID)
	require.True(t, ok)
	require.Equal(t, StatusOK, status)

	got, ok := state.Couple(couple.ID)
	require.True(t, ok)
	return got
}

func nodeAddr(i int) string {
	return []string{
		"10.0.0.1:1025",
		"10.0.0.2:1025",
		"10.0.0.3:1025",
		"10.0.0.4:1025",
		"10.0.0.5:1025",
	}[i]
}

func TestBootstrapIngest(t *testing.T) {
	state, _ := newTestState()

	state.UpdateStatistics([]elliptics.StatRow{
		testRow("10.0.0.1:1025", 7, 100, 4096, 50, 500, 0, 0),
	})

	hosts := state.Hosts()
	require.Len(t, hosts, 1)
	assert.Equal(t, "10.0.0.1", hosts[0].Addr)

	group, ok := state.Group(7)
	require.True(t, ok)
	assert.Equal(t, StatusInit, group.Status)
	assert.Nil(t, group.Meta)

	node, ok := state.Node("10.0.0.1:1025")
	require.True(t, ok)
	// the group has no coupling info yet, so the node status is
	// never refreshed past its initial value
	assert.Equal(t, StatusInit, node.Status)
	require.NotNil(t, node.Stat)
	assert.Equal(t, uint64(100*4096), node.Stat.TotalSpace)
}

func TestIngestIsIdempotentOnStatus(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	row := testRow("10.0.0.1:1025", 1, 100, 4096, 50, 500, 0, 0)
	clock.Advance(10 * time.Second)
	state.UpdateStatistics([]elliptics.StatRow{row})
	state.UpdateStatistics([]elliptics.StatRow{row})

	status, ok := state.UpdateCoupleStatus(couple.ID)
	require.True(t, ok)
	assert.Equal(t, StatusOK, status)
}

func TestIngestRejectsGroupMismatch(t *testing.T) {
	state, _ := newTestState()

	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.1:1025", 7, 100, 4096, 50, 500, 0, 0)})
	// same node claims a different group: the row is dropped
	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.1:1025", 8, 100, 4096, 10, 500, 0, 0)})

	node, ok := state.Node("10.0.0.1:1025")
	require.True(t, ok)
	assert.Equal(t, 7, node.GroupID)
	assert.Equal(t, uint64(50*4096), node.Stat.FreeSpace)

	_, ok = state.Group(8)
	assert.False(t, ok)
}

func TestIngestRejectsMalformedAddr(t *testing.T) {
	state, _ := newTestState()

	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.1", 7, 100, 4096, 50, 500, 0, 0)})

	assert.Empty(t, state.Nodes())
	_, ok := state.Group(7)
	assert.False(t, ok)
}

func TestNodeAppearsInExactlyOneGroup(t *testing.T) {
	state, clock := newTestState()
	buildCouple(t, state, clock, []int{1, 2, 3}, "web")

	seen := map[string]int{}
	for _, group := range state.Groups() {
		for _, addr := range group.NodeAddrs {
			seen[addr]++
		}
	}
	for addr, count := range seen {
		assert.Equal(t, 1, count, "node %s", addr)
	}
	assert.Len(t, seen, 3)
}

func TestCoupleFormation(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2, 3}, "web")

	assert.Equal(t, "1:2:3", couple.ID)
	assert.Equal(t, []int{1, 2, 3}, couple.GroupIDs)
	assert.Equal(t, StatusOK, couple.Status)

	ns, ok := state.CoupleNamespace(couple.ID)
	require.True(t, ok)
	assert.Equal(t, "web", ns)

	for _, gid := range couple.GroupIDs {
		group, ok := state.Group(gid)
		require.True(t, ok)
		assert.Equal(t, StatusCoupled, group.Status)
		assert.Equal(t, couple.ID, group.CoupleID)
	}
}

func TestEnsureCoupleMaterialisesPlaceholders(t *testing.T) {
	state, _ := newTestState()

	couple, err := state.EnsureCouple([]int{8, 7})
	require.NoError(t, err)
	assert.Equal(t, "7:8", couple.ID)

	group, ok := state.Group(8)
	require.True(t, ok)
	assert.Empty(t, group.NodeAddrs)
	assert.Equal(t, couple.ID, group.CoupleID)

	// placeholder members keep the couple in INIT
	status, ok := state.UpdateCoupleStatus(couple.ID)
	require.True(t, ok)
	assert.Equal(t, StatusInit, status)
}

func TestEnsureCoupleIsIdempotent(t *testing.T) {
	state, _ := newTestState()

	first, err := state.EnsureCouple([]int{1, 2})
	require.NoError(t, err)
	second, err := state.EnsureCouple([]int{2, 1})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, state.Couples(), 1)
}

func TestEnsureCoupleRejectsStolenGroup(t *testing.T) {
	state, _ := newTestState()

	_, err := state.EnsureCouple([]int{1, 2})
	require.NoError(t, err)

	_, err = state.EnsureCouple([]int{1, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group 1 is already in couple 1:2")
}

func TestStalledBoundary(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	// stat age of exactly the stall timeout is still OK
	clock.Advance(120 * time.Second)
	status, _ := state.UpdateCoupleStatus(couple.ID)
	assert.Equal(t, StatusOK, status)

	node, _ := state.Node("10.0.0.1:1025")
	assert.Equal(t, StatusOK, node.Status)

	// one more second tips the nodes into STALLED
	clock.Advance(1 * time.Second)
	status, _ = state.UpdateCoupleStatus(couple.ID)
	assert.Equal(t, StatusBad, status)

	node, _ = state.Node("10.0.0.1:1025")
	assert.Equal(t, StatusStalled, node.Status)
}

func TestReadOnlyNodePropagates(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	row := testRow("10.0.0.1:1025", 1, 100, 4096, 50, 500, 0, 0)
	row.ReadOnly = true
	clock.Advance(10 * time.Second)
	state.UpdateStatistics([]elliptics.StatRow{row})

	group, _ := state.Group(1)
	assert.Equal(t, StatusRO, group.Status)

	status, _ := state.UpdateCoupleStatus(couple.ID)
	assert.Equal(t, StatusRO, status)
}

func TestGroupWithoutCoupleGoesBad(t *testing.T) {
	state, _ := newTestState()

	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.1:1025", 1, 100, 4096, 50, 500, 0, 0)})
	blob, err := PackGroupMeta(&GroupMeta{Version: 2, Couple: []int{1, 2}, Namespace: "web"})
	require.NoError(t, err)
	require.NoError(t, state.ApplyGroupMeta(1, blob))

	status, ok := state.UpdateGroupStatus(1)
	require.True(t, ok)
	assert.Equal(t, StatusBad, status)
}

func TestNamespaceMismatchBreaksCouple(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	// group 2 rewrites its meta with a different namespace
	blob, err := PackGroupMeta(&GroupMeta{Version: 2, Couple: []int{1, 2}, Namespace: "photos"})
	require.NoError(t, err)
	require.NoError(t, state.ApplyGroupMeta(2, blob))

	status, _ := state.UpdateCoupleStatus(couple.ID)
	assert.Equal(t, StatusBad, status)
}

func TestApplyGroupMetaClearsOnNilAndGarbage(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	require.NoError(t, state.ApplyGroupMeta(1, nil))
	group, _ := state.Group(1)
	assert.Nil(t, group.Meta)
	assert.Equal(t, StatusBad, group.Status)

	// clearing twice is a no-op
	require.NoError(t, state.ApplyGroupMeta(1, nil))
	group, _ = state.Group(1)
	assert.Equal(t, StatusBad, group.Status)

	assert.Error(t, state.ApplyGroupMeta(2, []byte("\xc1")))
	group, _ = state.Group(2)
	assert.Nil(t, group.Meta)
	assert.Equal(t, StatusBad, group.Status)

	status, _ := state.UpdateCoupleStatus(couple.ID)
	assert.Equal(t, StatusBad, status)
}

func TestDestroyCouple(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	state.DestroyCouple(couple.ID)

	_, ok := state.Couple(couple.ID)
	assert.False(t, ok)

	for _, gid := range []int{1, 2} {
		group, ok := state.Group(gid)
		require.True(t, ok)
		assert.Equal(t, "", group.CoupleID)
		assert.Nil(t, group.Meta)
		assert.Equal(t, StatusInit, group.Status)
	}

	// groups are uncoupled again
	assert.Len(t, state.UncoupledGroups(), 2)
}

func TestFreezeLifecycle(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	state.ApplyCoupleMeta(couple.ID, &CoupleMeta{Frozen: true})
	got, _ := state.Couple(couple.ID)
	assert.Equal(t, StatusFrozen, got.Status)
	assert.True(t, got.Frozen)

	state.ApplyCoupleMeta(couple.ID, &CoupleMeta{Frozen: false})
	got, _ = state.Couple(couple.ID)
	assert.Equal(t, StatusOK, got.Status)

	// missing couple metakey resets the flag
	state.ApplyCoupleMeta(couple.ID, nil)
	got, _ = state.Couple(couple.ID)
	assert.Equal(t, StatusOK, got.Status)
}

func TestDetachNode(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	require.NoError(t, state.DetachNode(1, "10.0.0.1:1025"))

	group, _ := state.Group(1)
	assert.Empty(t, group.NodeAddrs)
	assert.Equal(t, StatusInit, group.Status)

	node, _ := state.Node("10.0.0.1:1025")
	assert.True(t, node.Destroyed)

	host, _ := state.Host("10.0.0.1")
	assert.Empty(t, host.NodeAddrs)

	// a detached node's counter rows are dropped
	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.1:1025", 1, 100, 4096, 50, 500, 0, 0)})
	group, _ = state.Group(1)
	assert.Empty(t, group.NodeAddrs)

	status, _ := state.UpdateCoupleStatus(couple.ID)
	assert.Equal(t, StatusInit, status)

	assert.Error(t, state.DetachNode(1, "10.0.0.1:1025"))
	assert.Error(t, state.DetachNode(99, "10.0.0.1:1025"))
}

func TestGroupAndCoupleStats(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")

	// second node in group 1
	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.4:1025", 1, 100, 4096, 30, 500, 0, 0)})

	groupStat := state.GroupStat(1)
	require.NotNil(t, groupStat)
	assert.Equal(t, uint64(2*100*4096), groupStat.TotalSpace)
	assert.Equal(t, uint64((50+30)*4096), groupStat.FreeSpace)

	coupleStat := state.CoupleStat(couple.ID)
	require.NotNil(t, coupleStat)
	// group 2 is the bottleneck in total space, group 1 in rel space
	assert.Equal(t, uint64(100*4096), coupleStat.TotalSpace)
	assert.Equal(t, uint64(50*4096), coupleStat.FreeSpace)
	assert.Equal(t, 0.3, coupleStat.RelSpace)

	assert.Nil(t, state.GroupStat(99))
	assert.Nil(t, state.CoupleStat("7:8"))
}

func TestMaxGroupID(t *testing.T) {
	state, _ := newTestState()
	assert.Equal(t, 0, state.MaxGroupID())

	state.UpdateStatistics([]elliptics.StatRow{
		testRow("10.0.0.1:1025", 7, 100, 4096, 50, 500, 0, 0),
		testRow("10.0.0.2:1025", 31, 100, 4096, 50, 500, 0, 0),
	})
	assert.Equal(t, 31, state.MaxGroupID())

	_, err := state.EnsureCouple([]int{31, 45})
	require.NoError(t, err)
	assert.Equal(t, 45, state.MaxGroupID())
}

func TestUpdateAllStatuses(t *testing.T) {
	state, clock := newTestState()
	couple := buildCouple(t, state, clock, []int{1, 2}, "web")
	state.UpdateStatistics([]elliptics.StatRow{testRow("10.0.0.4:1025", 9, 100, 4096, 50, 500, 0, 0)})

	clock.Advance(121 * time.Second)
	state.UpdateAllStatuses()

	got, _ := state.Couple(couple.ID)
	assert.Equal(t, StatusBad, got.Status)

	// uncoupled group 9 stays INIT: no coupling info
	group, _ := state.Group(9)
	assert.Equal(t, StatusInit, group.Status)
}
