package topology

import (
	"sort"
	"strconv"
	"strings"
)

// Host is a physical machine running one or more storage nodes. Its
// datacenter is resolved on demand through the inventory adapter and
// is deliberately not stored on the entity.
type Host struct {
	Addr string

	// NodeAddrs lists the nodes on this host in discovery order
	NodeAddrs []string
}

func (h *Host) String() string {
	return h.Addr
}

// Node is a single storage process, identified by host:port. A node
// belongs to exactly one group and one host.
type Node struct {
	Addr     string
	HostAddr string
	Port     int

	GroupID int

	// Stat is the latest statistics snapshot; nil until the first
	// counter row arrives
	Stat *NodeStat

	ReadOnly  bool
	Destroyed bool

	Status     Status
	StatusText string
}

func (n *Node) String() string {
	return n.Addr
}

// Group is a numbered replica served by one or more nodes in a single
// datacenter.
type Group struct {
	ID int

	// NodeAddrs lists member nodes in discovery order
	NodeAddrs []string

	// CoupleID is empty while the group is uncoupled
	CoupleID string

	// Meta is the parsed symmetric-groups blob; nil until the first
	// successful metakey read
	Meta *GroupMeta

	Status     Status
	StatusText string
}

func (g *Group) String() string {
	return strconv.Itoa(g.ID)
}

// Namespace returns the namespace from the group's meta, or the empty
// string while the meta is unknown.
func (g *Group) Namespace() string {
	if g.Meta == nil {
		return ""
	}
	return g.Meta.Namespace
}

// Couple binds groups in distinct datacenters that replicate the same
// data. It is identified by the colon-joined sorted member ids.
type Couple struct {
	ID string

	// GroupIDs holds the member ids in ascending order
	GroupIDs []int

	// Frozen mirrors the couple metakey: a frozen couple stays
	// readable but takes no new writes
	Frozen bool

	Status     Status
	StatusText string
}

func (c *Couple) String() string {
	return c.ID
}

// CoupleKey builds the repository key for a set of member group ids.
func CoupleKey(ids []int) string {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ":")
}

// ParseCoupleKey is the inverse of CoupleKey.
func ParseCoupleKey(key string) ([]int, error) {
	parts := strings.Split(key, ":")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Host) clone() *Host {
	c := *h
	c.NodeAddrs = append([]string(nil), h.NodeAddrs...)
	return &c
}

func (n *Node) clone() *Node {
	c := *n
	return &c
}

func (g *Group) clone() *Group {
	c := *g
	c.NodeAddrs = append([]string(nil), g.NodeAddrs...)
	return &c
}

func (c *Couple) clone() *Couple {
	cc := *c
	cc.GroupIDs = append([]int(nil), c.GroupIDs...)
	return &cc
}
