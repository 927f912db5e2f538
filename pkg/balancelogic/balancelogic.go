package balancelogic

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cuemby/mastermind/pkg/topology"
)

// Config carries the write-balancing tunables. MinFreeSpace and
// MinFreeSpaceRelative come from configuration and never change; the
// staleness cutoff is advanced by the reconciler after every reload and
// read on every weight request, hence the atomic.
type Config struct {
	// MinFreeSpace closes a couple for writes when its bottleneck
	// free space drops below this many bytes
	MinFreeSpace uint64

	// MinFreeSpaceRelative closes a couple for writes when its
	// bottleneck relative free space drops below this fraction
	MinFreeSpaceRelative float64

	// tooOldAge holds the staleness cutoff in nanoseconds
	tooOldAge atomic.Int64
}

// NewConfig returns a Config with the given thresholds and no
// staleness cutoff yet.
func NewConfig(minFreeSpace uint64, minFreeSpaceRelative float64) *Config {
	return &Config{
		MinFreeSpace:         minFreeSpace,
		MinFreeSpaceRelative: minFreeSpaceRelative,
	}
}

// SetDynamicTooOldAge advances the staleness cutoff. Statistics older
// than this are not trusted to carry write weight.
func (c *Config) SetDynamicTooOldAge(age time.Duration) {
	c.tooOldAge.Store(int64(age))
}

// DynamicTooOldAge returns the current staleness cutoff. Zero means no
// cutoff has been established yet and nothing is considered stale.
func (c *Config) DynamicTooOldAge() time.Duration {
	return time.Duration(c.tooOldAge.Load())
}

// Closed reports whether a couple with the given bottleneck statistics
// is closed for new writes: some member is below the configured free
// space thresholds. A couple without statistics is closed.
func (c *Config) Closed(stat *topology.NodeStat) bool {
	if stat == nil {
		return true
	}
	if stat.FreeSpace < c.MinFreeSpace {
		return true
	}
	if stat.RelSpace < c.MinFreeSpaceRelative {
		return true
	}
	return false
}

// Candidate is one couple offered to the weight function: its member
// group ids and its bottleneck statistics snapshot.
type Candidate struct {
	// CoupleID breaks weight ties so the output is deterministic
	CoupleID string

	IDs  []int
	Stat *topology.NodeStat
}

// Entry is one weighted couple in the balance output
type Entry struct {
	IDs       []int
	Weight    uint64
	FreeSpace uint64
}

// Filter narrows the candidate set; a nil filter admits everything
type Filter func(Candidate) bool

// RawBalance weighs the candidates that pass the filter and returns
// them sorted by descending weight, ties broken by couple id. Couples
// with stale statistics (older than the dynamic cutoff) and couples
// closed for writes carry no weight and are dropped.
func RawBalance(now time.Time, candidates []Candidate, cfg *Config, filter Filter) []Entry {
	age := cfg.DynamicTooOldAge()

	admitted := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if filter != nil && !filter(cand) {
			continue
		}
		if cand.Stat == nil {
			continue
		}
		if age > 0 && now.Sub(cand.Stat.TS) > age {
			continue
		}
		if cfg.Closed(cand.Stat) {
			continue
		}
		admitted = append(admitted, cand)
	}

	sort.Slice(admitted, func(i, j int) bool {
		wi, wj := weigh(admitted[i].Stat), weigh(admitted[j].Stat)
		if wi != wj {
			return wi > wj
		}
		return admitted[i].CoupleID < admitted[j].CoupleID
	})

	entries := make([]Entry, 0, len(admitted))
	for _, cand := range admitted {
		entries = append(entries, Entry{
			IDs:       cand.IDs,
			Weight:    weigh(cand.Stat),
			FreeSpace: cand.Stat.FreeSpace,
		})
	}
	return entries
}

// weigh blends relative free space with spare write throughput. Free
// space dominates by an order of magnitude; the throughput term breaks
// up herds of equally-empty couples.
func weigh(stat *topology.NodeStat) uint64 {
	headroom := 0.0
	if stat.MaxWriteRPS > 0 {
		spare := math.Max(stat.MaxWriteRPS-stat.WriteRPS, 0)
		headroom = spare / stat.MaxWriteRPS
	}
	return uint64(math.Round(stat.RelSpace*1000 + headroom*100))
}
