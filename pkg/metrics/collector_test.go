package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mastermind/pkg/elliptics"
	"github.com/cuemby/mastermind/pkg/topology"
)

func statRow(addr string, groupID int) elliptics.StatRow {
	return elliptics.StatRow{
		Addr:    addr,
		GroupID: groupID,
		Counters: map[string][]uint64{
			elliptics.CounterBlocks:      {1000},
			elliptics.CounterBlockSize:   {4096},
			elliptics.CounterBlocksAvail: {600},
			elliptics.CounterLA1:         {50},
		},
		StorageCommands: map[string][]uint64{
			elliptics.CommandRead:  {10},
			elliptics.CommandWrite: {10},
		},
		ProxyCommands: map[string][]uint64{
			elliptics.CommandRead:  {0},
			elliptics.CommandWrite: {0},
		},
	}
}

func coupledState(t *testing.T) *topology.State {
	t.Helper()

	state := topology.NewState(2 * time.Minute)
	state.UpdateStatistics([]elliptics.StatRow{
		statRow("10.0.0.1:1025", 1),
		statRow("10.0.0.2:1025", 2),
	})

	blob, err := topology.PackGroupMeta(&topology.GroupMeta{
		Version:   2,
		Couple:    []int{1, 2},
		Namespace: "default",
	})
	require.NoError(t, err)
	require.NoError(t, state.ApplyGroupMeta(1, blob))
	require.NoError(t, state.ApplyGroupMeta(2, blob))

	_, err = state.EnsureCouple([]int{1, 2})
	require.NoError(t, err)
	state.UpdateAllStatuses()

	return state
}

func TestCollectorSamplesTopology(t *testing.T) {
	state := coupledState(t)

	c := NewCollector(state)
	c.collect()

	require.Equal(t, float64(2), testutil.ToFloat64(NodesTotal.WithLabelValues("OK")))
	require.Equal(t, float64(0), testutil.ToFloat64(NodesTotal.WithLabelValues("STALLED")))
	require.Equal(t, float64(2), testutil.ToFloat64(GroupsTotal.WithLabelValues("COUPLED")))
	require.Equal(t, float64(1), testutil.ToFloat64(CouplesTotal.WithLabelValues("OK")))
	require.Equal(t, float64(0), testutil.ToFloat64(UncoupledGroups))

	require.Equal(t, float64(2*1000*4096), testutil.ToFloat64(TotalSpaceBytes))
	require.Equal(t, float64(2*600*4096), testutil.ToFloat64(FreeSpaceBytes))
}

func TestCollectorCountsUncoupledGroups(t *testing.T) {
	state := topology.NewState(2 * time.Minute)
	state.UpdateStatistics([]elliptics.StatRow{
		statRow("10.0.0.3:1025", 7),
	})
	state.UpdateAllStatuses()

	c := NewCollector(state)
	c.collect()

	require.Equal(t, float64(1), testutil.ToFloat64(UncoupledGroups))
	require.Equal(t, float64(1), testutil.ToFloat64(GroupsTotal.WithLabelValues("INIT")))
}

func TestCollectorClearsVanishedStatuses(t *testing.T) {
	state := coupledState(t)
	c := NewCollector(state)
	c.collect()
	require.Equal(t, float64(1), testutil.ToFloat64(CouplesTotal.WithLabelValues("OK")))

	// an empty model must zero every previously reported series
	c = NewCollector(topology.NewState(2 * time.Minute))
	c.collect()

	require.Equal(t, float64(0), testutil.ToFloat64(CouplesTotal.WithLabelValues("OK")))
	require.Equal(t, float64(0), testutil.ToFloat64(NodesTotal.WithLabelValues("OK")))
	require.Equal(t, float64(0), testutil.ToFloat64(TotalSpaceBytes))
}
