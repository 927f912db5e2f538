package topology

import (
	"fmt"
	"math"
	"time"

	"github.com/cuemby/mastermind/pkg/elliptics"
)

// initialMaxRPS is the first estimate of a node's throughput before
// two consecutive snapshots exist. A typical commodity SATA disk
// sustains about 100 IOPS.
const initialMaxRPS = 100

// NodeStat is one statistics snapshot of a storage node. Snapshots
// combine with Add when summing the nodes of a group and with
// Bottleneck when intersecting the groups of a couple. A snapshot is
// never mutated after construction.
type NodeStat struct {
	TS time.Time

	TotalSpace uint64
	FreeSpace  uint64

	// RelSpace is the fraction of blocks still available, in [0, 1]
	RelSpace float64

	LoadAverage float64

	ReadRPS  float64
	WriteRPS float64

	MaxReadRPS  float64
	MaxWriteRPS float64

	// raw command counters kept as the baseline for the next delta
	lastRead  uint64
	lastWrite uint64
}

// newNodeStat derives a snapshot from a raw counter row. The previous
// snapshot, when present, provides the baseline for the rps
// derivation; without one the rps is zero and the throughput ceiling
// falls back to the initial estimate.
func newNodeStat(now time.Time, row elliptics.StatRow, prev *NodeStat) (*NodeStat, error) {
	blocks, err := counterValue(row.Counters, elliptics.CounterBlocks)
	if err != nil {
		return nil, err
	}
	blockSize, err := counterValue(row.Counters, elliptics.CounterBlockSize)
	if err != nil {
		return nil, err
	}
	avail, err := counterValue(row.Counters, elliptics.CounterBlocksAvail)
	if err != nil {
		return nil, err
	}
	la, err := counterValue(row.Counters, elliptics.CounterDU1, elliptics.CounterLA1)
	if err != nil {
		return nil, err
	}
	if blocks == 0 {
		return nil, fmt.Errorf("counter %s is zero", elliptics.CounterBlocks)
	}

	storageRead, err := counterValue(row.StorageCommands, elliptics.CommandRead)
	if err != nil {
		return nil, err
	}
	proxyRead, err := counterValue(row.ProxyCommands, elliptics.CommandRead)
	if err != nil {
		return nil, err
	}
	storageWrite, err := counterValue(row.StorageCommands, elliptics.CommandWrite)
	if err != nil {
		return nil, err
	}
	proxyWrite, err := counterValue(row.ProxyCommands, elliptics.CommandWrite)
	if err != nil {
		return nil, err
	}

	stat := &NodeStat{
		TS:          now,
		TotalSpace:  blocks * blockSize,
		FreeSpace:   avail * blockSize,
		RelSpace:    float64(avail) / float64(blocks),
		LoadAverage: float64(la) / 100,
		MaxReadRPS:  initialMaxRPS,
		MaxWriteRPS: initialMaxRPS,
		lastRead:    storageRead + proxyRead,
		lastWrite:   storageWrite + proxyWrite,
	}

	if prev == nil {
		return stat, nil
	}

	dt := stat.TS.Sub(prev.TS).Seconds()
	if dt <= 0 {
		return nil, fmt.Errorf("stat timestamp did not advance")
	}
	if stat.LoadAverage == 0 {
		return nil, fmt.Errorf("zero load average in counter row")
	}

	stat.ReadRPS = (float64(stat.lastRead) - float64(prev.lastRead)) / dt
	stat.WriteRPS = (float64(stat.lastWrite) - float64(prev.lastWrite)) / dt
	stat.MaxReadRPS = math.Max(stat.ReadRPS/stat.LoadAverage, initialMaxRPS)
	stat.MaxWriteRPS = math.Max(stat.WriteRPS/stat.LoadAverage, initialMaxRPS)

	return stat, nil
}

// Add aggregates two snapshots into a group-level sum: spaces add up,
// the relative space and timestamp take the minimum, the load average
// takes the maximum.
func (s *NodeStat) Add(other *NodeStat) *NodeStat {
	return &NodeStat{
		TS:          minTime(s.TS, other.TS),
		TotalSpace:  s.TotalSpace + other.TotalSpace,
		FreeSpace:   s.FreeSpace + other.FreeSpace,
		RelSpace:    math.Min(s.RelSpace, other.RelSpace),
		LoadAverage: math.Max(s.LoadAverage, other.LoadAverage),
		ReadRPS:     s.ReadRPS + other.ReadRPS,
		WriteRPS:    s.WriteRPS + other.WriteRPS,
		MaxReadRPS:  s.MaxReadRPS + other.MaxReadRPS,
		MaxWriteRPS: s.MaxWriteRPS + other.MaxWriteRPS,
	}
}

// Bottleneck intersects two snapshots into a couple-level minimum:
// spaces and throughput ceilings take the minimum, the load average
// and observed rps take the maximum.
func (s *NodeStat) Bottleneck(other *NodeStat) *NodeStat {
	return &NodeStat{
		TS:          minTime(s.TS, other.TS),
		TotalSpace:  min(s.TotalSpace, other.TotalSpace),
		FreeSpace:   min(s.FreeSpace, other.FreeSpace),
		RelSpace:    math.Min(s.RelSpace, other.RelSpace),
		LoadAverage: math.Max(s.LoadAverage, other.LoadAverage),
		ReadRPS:     math.Max(s.ReadRPS, other.ReadRPS),
		WriteRPS:    math.Max(s.WriteRPS, other.WriteRPS),
		MaxReadRPS:  math.Min(s.MaxReadRPS, other.MaxReadRPS),
		MaxWriteRPS: math.Min(s.MaxWriteRPS, other.MaxWriteRPS),
	}
}

// counterValue picks the first counter present under names. Counter
// values arrive as short arrays whose head is the current value.
func counterValue(counters map[string][]uint64, names ...string) (uint64, error) {
	for _, name := range names {
		if values := counters[name]; len(values) > 0 {
			return values[0], nil
		}
	}
	return 0, fmt.Errorf("missing counter %s", names[len(names)-1])
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
