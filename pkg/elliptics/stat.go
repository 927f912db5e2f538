package elliptics

// Counter names within a stat row. Counter values arrive as short
// arrays whose head is the current value.
const (
	CounterBlocks      = "DNET_CNTR_BLOCKS"
	CounterBlockSize   = "DNET_CNTR_BSIZE"
	CounterBlocksAvail = "DNET_CNTR_BAVAIL"
	CounterLA1         = "DNET_CNTR_LA1"
	CounterDU1         = "DNET_CNTR_DU1"

	CommandRead  = "READ"
	CommandWrite = "WRITE"
)

// StatRow is one raw per-node counter row from the fleet's stat log.
type StatRow struct {
	// Addr is the node address as host:port
	Addr string

	// GroupID is the group the node claims to serve
	GroupID int

	// ReadOnly is set when the node accepts no writes
	ReadOnly bool

	Counters        map[string][]uint64
	StorageCommands map[string][]uint64
	ProxyCommands   map[string][]uint64
}
