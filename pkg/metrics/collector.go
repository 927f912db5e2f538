package metrics

import (
	"time"

	"github.com/cuemby/mastermind/pkg/topology"
)

// nodeStatuses, groupStatuses and coupleStatuses enumerate every
// status an entity of each kind can take. The collector zeroes all of
// them before counting so labels for vanished statuses do not go
// stale.
var (
	nodeStatuses = []topology.Status{
		topology.StatusInit,
		topology.StatusOK,
		topology.StatusRO,
		topology.StatusBad,
		topology.StatusStalled,
	}

	groupStatuses = []topology.Status{
		topology.StatusInit,
		topology.StatusCoupled,
		topology.StatusRO,
		topology.StatusBad,
	}

	coupleStatuses = []topology.Status{
		topology.StatusInit,
		topology.StatusOK,
		topology.StatusFrozen,
		topology.StatusRO,
		topology.StatusBad,
	}
)

// Collector samples the topology model into the Prometheus gauges
type Collector struct {
	state  *topology.State
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(state *topology.State) *Collector {
	return &Collector{
		state:  state,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectNodeMetrics()
	c.collectGroupMetrics()
	c.collectCoupleMetrics()
}

func (c *Collector) collectNodeMetrics() {
	counts := make(map[topology.Status]int, len(nodeStatuses))

	var totalSpace, freeSpace uint64
	for _, node := range c.state.Nodes() {
		counts[node.Status]++
		if node.Stat != nil {
			totalSpace += node.Stat.TotalSpace
			freeSpace += node.Stat.FreeSpace
		}
	}

	for _, status := range nodeStatuses {
		NodesTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	TotalSpaceBytes.Set(float64(totalSpace))
	FreeSpaceBytes.Set(float64(freeSpace))
}

func (c *Collector) collectGroupMetrics() {
	counts := make(map[topology.Status]int, len(groupStatuses))

	uncoupled := 0
	for _, group := range c.state.Groups() {
		counts[group.Status]++
		if group.CoupleID == "" {
			uncoupled++
		}
	}

	for _, status := range groupStatuses {
		GroupsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	UncoupledGroups.Set(float64(uncoupled))
}

func (c *Collector) collectCoupleMetrics() {
	counts := make(map[topology.Status]int, len(coupleStatuses))

	for _, couple := range c.state.Couples() {
		counts[couple.Status]++
	}

	for _, status := range coupleStatuses {
		CouplesTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
