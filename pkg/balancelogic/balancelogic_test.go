package balancelogic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mastermind/pkg/topology"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func freshStat(free, total uint64) *topology.NodeStat {
	return &topology.NodeStat{
		TS:          testNow,
		TotalSpace:  total,
		FreeSpace:   free,
		RelSpace:    float64(free) / float64(total),
		MaxWriteRPS: 100,
	}
}

func TestRawBalanceOrdersByDescendingWeight(t *testing.T) {
	cfg := NewConfig(0, 0)

	candidates := []Candidate{
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: freshStat(100, 1000)},
		{CoupleID: "3:4", IDs: []int{3, 4}, Stat: freshStat(900, 1000)},
		{CoupleID: "5:6", IDs: []int{5, 6}, Stat: freshStat(500, 1000)},
	}

	entries := RawBalance(testNow, candidates, cfg, nil)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{3, 4}, entries[0].IDs)
	assert.Equal(t, []int{5, 6}, entries[1].IDs)
	assert.Equal(t, []int{1, 2}, entries[2].IDs)
	assert.Greater(t, entries[0].Weight, entries[1].Weight)
	assert.Greater(t, entries[1].Weight, entries[2].Weight)
}

func TestRawBalanceTieBreaksByCoupleID(t *testing.T) {
	cfg := NewConfig(0, 0)

	candidates := []Candidate{
		{CoupleID: "7:8", IDs: []int{7, 8}, Stat: freshStat(500, 1000)},
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: freshStat(500, 1000)},
	}

	entries := RawBalance(testNow, candidates, cfg, nil)
	require.Len(t, entries, 2)
	assert.Equal(t, []int{1, 2}, entries[0].IDs)
	assert.Equal(t, []int{7, 8}, entries[1].IDs)
}

func TestRawBalanceExcludesStaleStats(t *testing.T) {
	cfg := NewConfig(0, 0)
	cfg.SetDynamicTooOldAge(time.Minute)

	stale := freshStat(900, 1000)
	stale.TS = testNow.Add(-2 * time.Minute)

	candidates := []Candidate{
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: stale},
		{CoupleID: "3:4", IDs: []int{3, 4}, Stat: freshStat(500, 1000)},
	}

	entries := RawBalance(testNow, candidates, cfg, nil)
	require.Len(t, entries, 1)
	assert.Equal(t, []int{3, 4}, entries[0].IDs)
}

func TestRawBalanceWithoutCutoffKeepsOldStats(t *testing.T) {
	cfg := NewConfig(0, 0)

	old := freshStat(900, 1000)
	old.TS = testNow.Add(-24 * time.Hour)

	entries := RawBalance(testNow, []Candidate{{CoupleID: "1:2", IDs: []int{1, 2}, Stat: old}}, cfg, nil)
	assert.Len(t, entries, 1)
}

func TestRawBalanceExcludesClosedCouples(t *testing.T) {
	cfg := NewConfig(200, 0)

	candidates := []Candidate{
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: freshStat(100, 1000)},
		{CoupleID: "3:4", IDs: []int{3, 4}, Stat: freshStat(500, 1000)},
	}

	entries := RawBalance(testNow, candidates, cfg, nil)
	require.Len(t, entries, 1)
	assert.Equal(t, []int{3, 4}, entries[0].IDs)
}

func TestRawBalanceSkipsMissingStats(t *testing.T) {
	cfg := NewConfig(0, 0)

	entries := RawBalance(testNow, []Candidate{{CoupleID: "1:2", IDs: []int{1, 2}}}, cfg, nil)
	assert.Empty(t, entries)
}

func TestRawBalanceAppliesFilter(t *testing.T) {
	cfg := NewConfig(0, 0)

	candidates := []Candidate{
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: freshStat(500, 1000)},
		{CoupleID: "3:4:5", IDs: []int{3, 4, 5}, Stat: freshStat(500, 1000)},
	}

	pairs := func(c Candidate) bool { return len(c.IDs) == 2 }

	entries := RawBalance(testNow, candidates, cfg, pairs)
	require.Len(t, entries, 1)
	assert.Equal(t, []int{1, 2}, entries[0].IDs)
}

func TestRawBalanceReportsFreeSpace(t *testing.T) {
	cfg := NewConfig(0, 0)

	entries := RawBalance(testNow, []Candidate{
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: freshStat(12345, 100000)},
	}, cfg, nil)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(12345), entries[0].FreeSpace)
}

func TestWeightPrefersSpareWriteThroughput(t *testing.T) {
	cfg := NewConfig(0, 0)

	busy := freshStat(500, 1000)
	busy.WriteRPS = 100 // saturated

	idle := freshStat(500, 1000)

	candidates := []Candidate{
		{CoupleID: "1:2", IDs: []int{1, 2}, Stat: busy},
		{CoupleID: "3:4", IDs: []int{3, 4}, Stat: idle},
	}

	entries := RawBalance(testNow, candidates, cfg, nil)
	require.Len(t, entries, 2)
	assert.Equal(t, []int{3, 4}, entries[0].IDs)
	assert.Equal(t, entries[0].Weight-entries[1].Weight, uint64(100))
}

func TestClosed(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *Config
		stat   *topology.NodeStat
		closed bool
	}{
		{
			name:   "no stat",
			cfg:    NewConfig(0, 0),
			stat:   nil,
			closed: true,
		},
		{
			name:   "below absolute threshold",
			cfg:    NewConfig(200, 0),
			stat:   freshStat(100, 1000),
			closed: true,
		},
		{
			name:   "below relative threshold",
			cfg:    NewConfig(0, 0.5),
			stat:   freshStat(100, 1000),
			closed: true,
		},
		{
			name:   "healthy",
			cfg:    NewConfig(200, 0.05),
			stat:   freshStat(500, 1000),
			closed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.closed, tt.cfg.Closed(tt.stat))
		})
	}
}

func TestDynamicTooOldAge(t *testing.T) {
	cfg := NewConfig(0, 0)
	assert.Zero(t, cfg.DynamicTooOldAge())

	cfg.SetDynamicTooOldAge(3 * time.Minute)
	assert.Equal(t, 3*time.Minute, cfg.DynamicTooOldAge())
}
