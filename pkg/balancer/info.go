package balancer

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/mastermind/pkg/balancelogic"
	"github.com/cuemby/mastermind/pkg/infrastructure"
	"github.com/cuemby/mastermind/pkg/topology"
)

// NodeInfo is the wire shape of one storage node.
type NodeInfo struct {
	Addr        string  `msgpack:"addr" json:"addr"`
	Status      string  `msgpack:"status" json:"status"`
	StatusText  string  `msgpack:"status_text" json:"status_text"`
	FreeSpace   uint64  `msgpack:"free_space" json:"free_space"`
	TotalSpace  uint64  `msgpack:"total_space" json:"total_space"`
	LoadAverage float64 `msgpack:"load_average" json:"load_average"`
}

// GroupInfo is the wire shape of one group.
type GroupInfo struct {
	ID         int        `msgpack:"id" json:"id"`
	Status     string     `msgpack:"status" json:"status"`
	StatusText string     `msgpack:"status_text" json:"status_text"`
	Couple     string     `msgpack:"couple,omitempty" json:"couple,omitempty"`
	Namespace  string     `msgpack:"namespace,omitempty" json:"namespace,omitempty"`
	Nodes      []NodeInfo `msgpack:"nodes" json:"nodes"`
}

// CoupleInfo is the wire shape of one couple.
type CoupleInfo struct {
	ID         string      `msgpack:"couple" json:"couple"`
	GroupIDs   []int       `msgpack:"groups" json:"groups"`
	Status     string      `msgpack:"status" json:"status"`
	StatusText string      `msgpack:"status_text" json:"status_text"`
	Frozen     bool        `msgpack:"frozen" json:"frozen"`
	Namespace  string      `msgpack:"namespace,omitempty" json:"namespace,omitempty"`
	FreeSpace  uint64      `msgpack:"free_space" json:"free_space"`
	TotalSpace uint64      `msgpack:"total_space" json:"total_space"`
	Groups     []GroupInfo `msgpack:"group_info" json:"group_info"`
}

// WeightEntry is one weighted couple in the balance output.
type WeightEntry struct {
	GroupIDs  []int  `msgpack:"group_ids" json:"group_ids"`
	Weight    uint64 `msgpack:"weight" json:"weight"`
	FreeSpace uint64 `msgpack:"free_space" json:"free_space"`
}

// Groups returns every known group id in ascending order.
func (b *Balancer) Groups() []int {
	groups := b.state.Groups()
	ids := make([]int, 0, len(groups))
	for _, group := range groups {
		ids = append(ids, group.ID)
	}
	sort.Ints(ids)
	return ids
}

// SymmetricGroups returns the member ids of every healthy couple.
func (b *Balancer) SymmetricGroups() [][]int {
	return b.couplesWithStatus(topology.StatusOK)
}

// BadGroups returns the member ids of every couple in BAD state.
func (b *Balancer) BadGroups() [][]int {
	return b.couplesWithStatus(topology.StatusBad)
}

// FrozenGroups returns the member ids of every frozen couple.
func (b *Balancer) FrozenGroups() [][]int {
	return b.couplesWithStatus(topology.StatusFrozen)
}

func (b *Balancer) couplesWithStatus(status topology.Status) [][]int {
	out := make([][]int, 0)
	for _, couple := range b.state.Couples() {
		if couple.Status == status {
			out = append(out, couple.GroupIDs)
		}
	}
	return out
}

// ClosedGroups returns the member ids of couples that are healthy but
// excluded from new writes by the free-space thresholds. Frozen
// couples are not closed, they are frozen.
func (b *Balancer) ClosedGroups() [][]int {
	out := make([][]int, 0)
	for _, couple := range b.state.Couples() {
		if couple.Status != topology.StatusOK {
			continue
		}
		if b.balance.Closed(b.state.CoupleStat(couple.ID)) {
			out = append(out, couple.GroupIDs)
		}
	}
	return out
}

// EmptyGroups returns the uncoupled group ids in ascending order.
func (b *Balancer) EmptyGroups() []int {
	uncoupled := b.state.UncoupledGroups()
	ids := make([]int, 0, len(uncoupled))
	for _, group := range uncoupled {
		ids = append(ids, group.ID)
	}
	sort.Ints(ids)
	return ids
}

// GroupInfo describes one group together with its nodes.
func (b *Balancer) GroupInfo(groupID int) (*GroupInfo, error) {
	group, ok := b.state.Group(groupID)
	if !ok {
		return nil, fmt.Errorf("group %d is not found", groupID)
	}
	info := b.groupInfo(group)
	return &info, nil
}

func (b *Balancer) groupInfo(group *topology.Group) GroupInfo {
	info := GroupInfo{
		ID:         group.ID,
		Status:     string(group.Status),
		StatusText: group.StatusText,
		Couple:     group.CoupleID,
		Namespace:  group.Namespace(),
		Nodes:      make([]NodeInfo, 0, len(group.NodeAddrs)),
	}
	for _, addr := range group.NodeAddrs {
		node, ok := b.state.Node(addr)
		if !ok {
			continue
		}
		ni := NodeInfo{
			Addr:       node.Addr,
			Status:     string(node.Status),
			StatusText: node.StatusText,
		}
		if node.Stat != nil {
			ni.FreeSpace = node.Stat.FreeSpace
			ni.TotalSpace = node.Stat.TotalSpace
			ni.LoadAverage = node.Stat.LoadAverage
		}
		info.Nodes = append(info.Nodes, ni)
	}
	return info
}

// CoupleInfo describes the couple a group belongs to.
func (b *Balancer) CoupleInfo(groupID int) (*CoupleInfo, error) {
	group, ok := b.state.Group(groupID)
	if !ok {
		return nil, fmt.Errorf("group %d is not found", groupID)
	}
	if group.CoupleID == "" {
		return nil, fmt.Errorf("group %d is not in a couple", groupID)
	}
	couple, ok := b.state.Couple(group.CoupleID)
	if !ok {
		return nil, fmt.Errorf("couple %s is not found", group.CoupleID)
	}

	ns, _ := b.state.CoupleNamespace(couple.ID)
	info := &CoupleInfo{
		ID:         couple.ID,
		GroupIDs:   couple.GroupIDs,
		Status:     string(couple.Status),
		StatusText: couple.StatusText,
		Frozen:     couple.Frozen,
		Namespace:  ns,
		Groups:     make([]GroupInfo, 0, len(couple.GroupIDs)),
	}
	if stat := b.state.CoupleStat(couple.ID); stat != nil {
		info.FreeSpace = stat.FreeSpace
		info.TotalSpace = stat.TotalSpace
	}
	for _, gid := range couple.GroupIDs {
		member, ok := b.state.Group(gid)
		if !ok {
			continue
		}
		info.Groups = append(info.Groups, b.groupInfo(member))
	}
	return info, nil
}

// GroupHistory returns the recorded node-set history of a group in
// append order.
func (b *Balancer) GroupHistory(groupID int) ([]infrastructure.Record, error) {
	if b.history == nil {
		return nil, fmt.Errorf("group history is not available")
	}
	return b.history.History(groupID)
}

// GroupWeights buckets the healthy couples by namespace and size and
// weighs each bucket. Couples with stale statistics or closed for
// writes carry no weight and are omitted.
func (b *Balancer) GroupWeights() map[string]map[int][]WeightEntry {
	type bucketKey struct {
		ns   string
		size int
	}
	buckets := make(map[bucketKey][]balancelogic.Candidate)

	for _, couple := range b.state.Couples() {
		if couple.Status != topology.StatusOK {
			continue
		}
		ns, ok := b.state.CoupleNamespace(couple.ID)
		if !ok {
			continue
		}
		key := bucketKey{ns: ns, size: len(couple.GroupIDs)}
		buckets[key] = append(buckets[key], balancelogic.Candidate{
			CoupleID: couple.ID,
			IDs:      couple.GroupIDs,
			Stat:     b.state.CoupleStat(couple.ID),
		})
	}

	out := make(map[string]map[int][]WeightEntry)
	for key, candidates := range buckets {
		entries := balancelogic.RawBalance(b.now(), candidates, b.balance, nil)
		if len(entries) == 0 {
			continue
		}
		weighted := make([]WeightEntry, 0, len(entries))
		for _, entry := range entries {
			weighted = append(weighted, WeightEntry{
				GroupIDs:  entry.IDs,
				Weight:    entry.Weight,
				FreeSpace: entry.FreeSpace,
			})
		}
		if out[key.ns] == nil {
			out[key.ns] = make(map[int][]WeightEntry)
		}
		out[key.ns][key.size] = weighted
	}
	return out
}

// GroupsByDC buckets groups by the datacenter they live in. An empty
// id list means every group that has nodes.
func (b *Balancer) GroupsByDC(ctx context.Context, ids []int) (map[string][]int, error) {
	var groups []*topology.Group
	if len(ids) == 0 {
		for _, group := range b.state.Groups() {
			if len(group.NodeAddrs) == 0 {
				continue
			}
			groups = append(groups, group)
		}
	} else {
		for _, id := range ids {
			group, ok := b.state.Group(id)
			if !ok {
				return nil, fmt.Errorf("group %d is not found", id)
			}
			if len(group.NodeAddrs) == 0 {
				return nil, fmt.Errorf("group %d has no nodes", id)
			}
			groups = append(groups, group)
		}
	}

	out := make(map[string][]int)
	for _, group := range groups {
		dc, err := b.groupDC(ctx, group)
		if err != nil {
			return nil, err
		}
		out[dc] = append(out[dc], group.ID)
	}
	for dc := range out {
		sort.Ints(out[dc])
	}
	return out, nil
}

// CouplesByNamespace buckets couple ids by namespace. Couples whose
// namespace is not known yet are omitted.
func (b *Balancer) CouplesByNamespace() map[string][]string {
	out := make(map[string][]string)
	for _, couple := range b.state.Couples() {
		ns, ok := b.state.CoupleNamespace(couple.ID)
		if !ok {
			continue
		}
		out[ns] = append(out[ns], couple.ID)
	}
	for ns := range out {
		sort.Strings(out[ns])
	}
	return out
}

// ConfigInfo returns the active configuration for operator tooling.
func (b *Balancer) ConfigInfo() map[string]interface{} {
	return map[string]interface{}{
		"grpc_addr":    b.cfg.GRPCAddr,
		"metrics_addr": b.cfg.MetricsAddr,
		"elliptics": map[string]interface{}{
			"driver":  b.cfg.Elliptics.Driver,
			"remotes": b.cfg.Elliptics.Remotes,
		},
		"metadata": map[string]interface{}{
			"groups": b.metaGroups,
		},
		"reconciler": map[string]interface{}{
			"nodes_reload_period": b.cfg.Reconciler.NodesReloadPeriod.String(),
			"stall_timeout":       b.cfg.Reconciler.StallTimeout.String(),
		},
		"balancer": map[string]interface{}{
			"min_free_space":          b.cfg.Balancer.MinFreeSpace,
			"min_free_space_relative": b.cfg.Balancer.MinFreeSpaceRelative,
		},
	}
}
