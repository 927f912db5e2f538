package topology

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/mastermind/pkg/elliptics"
	"github.com/cuemby/mastermind/pkg/log"
)

// State is the in-memory topology model: every host, node, group and
// couple the coordinator currently knows about. It is rebuilt from
// the fleet on start and never persisted. One State value is shared
// between the reconciler and the request handlers; a coarse RWMutex
// serialises access, and every accessor returns copies so callers
// never hold live entities outside the lock.
type State struct {
	mu sync.RWMutex

	hosts   *repository[string, *Host]
	nodes   *repository[string, *Node]
	groups  *repository[int, *Group]
	couples *repository[string, *Couple]

	// stallTimeout bounds the age of node statistics before a node
	// is marked STALLED
	stallTimeout time.Duration

	now    func() time.Time
	logger zerolog.Logger
}

// NewState returns an empty model.
func NewState(stallTimeout time.Duration) *State {
	return &State{
		hosts:        newRepository[string, *Host](),
		nodes:        newRepository[string, *Node](),
		groups:       newRepository[int, *Group](),
		couples:      newRepository[string, *Couple](),
		stallTimeout: stallTimeout,
		now:          time.Now,
		logger:       log.WithComponent("topology"),
	}
}

// UpdateStatistics feeds one batch of raw counter rows into the
// model, creating hosts, groups and nodes on first sight. Row
// failures are isolated: a malformed row is logged and dropped, the
// rest of the batch proceeds.
func (s *State) UpdateStatistics(rows []elliptics.StatRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if err := s.ingestRow(row); err != nil {
			s.logger.Error().Err(err).
				Str("addr", row.Addr).
				Int("group_id", row.GroupID).
				Msg("failed to process statistics row")
		}
	}
}

func (s *State) ingestRow(row elliptics.StatRow) error {
	node, ok := s.nodes.get(row.Addr)
	if !ok {
		hostAddr, portStr, err := net.SplitHostPort(row.Addr)
		if err != nil {
			return fmt.Errorf("malformed node address: %v", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("malformed node port: %v", err)
		}

		host := s.hosts.add(hostAddr, &Host{Addr: hostAddr})
		group := s.addGroup(row.GroupID)
		node = s.nodes.add(row.Addr, &Node{
			Addr:       row.Addr,
			HostAddr:   hostAddr,
			Port:       port,
			GroupID:    row.GroupID,
			Status:     StatusInit,
			StatusText: fmt.Sprintf("Node %s is not initialized yet", row.Addr),
		})
		host.NodeAddrs = append(host.NodeAddrs, row.Addr)
		group.NodeAddrs = append(group.NodeAddrs, row.Addr)

		s.logger.Debug().Str("addr", row.Addr).Int("group_id", row.GroupID).Msg("added node")
	}

	if node.Destroyed {
		return fmt.Errorf("node %s is destroyed", node.Addr)
	}
	if node.GroupID != row.GroupID {
		return fmt.Errorf("node is in group %d, counter row claims group %d", node.GroupID, row.GroupID)
	}

	stat, err := newNodeStat(s.now(), row, node.Stat)
	if err != nil {
		return fmt.Errorf("failed to derive node stat: %v", err)
	}
	node.Stat = stat
	node.ReadOnly = row.ReadOnly

	if group, ok := s.groups.get(row.GroupID); ok {
		s.updateGroupStatus(group)
	}
	return nil
}

func (s *State) addGroup(id int) *Group {
	return s.groups.add(id, &Group{
		ID:         id,
		Status:     StatusInit,
		StatusText: fmt.Sprintf("Group %d is not initialized yet", id),
	})
}

// ApplyGroupMeta installs a freshly read symmetric-groups blob on a
// group. A nil blob stands for a missing or unreadable key: the meta
// is cleared and the group forced BAD. A blob that fails to decode is
// treated the same way and the decode error is returned.
func (s *State) ApplyGroupMeta(groupID int, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := s.addGroup(groupID)
	if blob == nil {
		group.Meta = nil
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d has no metadata key", groupID)
		return nil
	}

	meta, err := ParseGroupMeta(blob)
	if err != nil {
		group.Meta = nil
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d metadata is unparseable", groupID)
		return err
	}

	group.Meta = meta
	return nil
}

// EnsureCouple returns the couple binding ids, creating it if absent.
// Member ids never seen in a counter row are materialised as
// placeholder groups with no nodes. A member already bound to a
// different couple is an error.
func (s *State) EnsureCouple(ids []int) (*Couple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := CoupleKey(ids)
	if couple, ok := s.couples.get(key); ok {
		return couple.clone(), nil
	}

	members := make([]*Group, 0, len(ids))
	for _, id := range ids {
		group := s.addGroup(id)
		if group.CoupleID != "" && group.CoupleID != key {
			return nil, fmt.Errorf("group %d is already in couple %s", id, group.CoupleID)
		}
		members = append(members, group)
	}

	sorted, _ := ParseCoupleKey(key)
	couple := &Couple{
		ID:         key,
		GroupIDs:   sorted,
		Status:     StatusInit,
		StatusText: fmt.Sprintf("Couple %s is not initialized yet", key),
	}
	for _, member := range members {
		member.CoupleID = key
	}
	s.couples.add(key, couple)

	s.logger.Info().Str("couple", key).Msg("assembled couple")
	return couple.clone(), nil
}

// DestroyCouple unbinds every member group and removes the couple
// from the model. Member metadata is cleared, so their next status is
// INIT until fresh metadata is observed.
func (s *State) DestroyCouple(coupleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	couple, ok := s.couples.remove(coupleID)
	if !ok {
		return
	}
	for _, gid := range couple.GroupIDs {
		if group, ok := s.groups.get(gid); ok {
			group.CoupleID = ""
			group.Meta = nil
			s.updateGroupStatus(group)
		}
	}
	couple.GroupIDs = nil
	couple.Status = StatusInit

	s.logger.Info().Str("couple", coupleID).Msg("destroyed couple")
}

// ApplyCoupleMeta installs the parsed couple metakey payload and
// refreshes the couple status. A nil meta stands for a missing key
// and resets the frozen flag.
func (s *State) ApplyCoupleMeta(coupleID string, meta *CoupleMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	couple, ok := s.couples.get(coupleID)
	if !ok {
		return
	}
	couple.Frozen = meta != nil && meta.Frozen
	s.updateCoupleStatus(couple)
}

// DetachNode removes a node from its group, marking the node
// destroyed. The group and its couple are refreshed.
func (s *State) DetachNode(groupID int, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups.get(groupID)
	if !ok {
		return fmt.Errorf("group %d is not found", groupID)
	}
	node, ok := s.nodes.get(addr)
	if !ok || node.GroupID != groupID || !contains(group.NodeAddrs, addr) {
		return fmt.Errorf("node %s does not belong to group %d", addr, groupID)
	}

	node.Destroyed = true
	group.NodeAddrs = removeString(group.NodeAddrs, addr)
	if host, ok := s.hosts.get(node.HostAddr); ok {
		host.NodeAddrs = removeString(host.NodeAddrs, addr)
	}

	s.updateStatusRecursive(group)

	s.logger.Info().Str("addr", addr).Int("group_id", groupID).Msg("detached node")
	return nil
}

// NodeStatus recomputes and returns the current status of one node.
// Uncoupled groups skip their nodes during status refresh, so callers
// judging node health must not trust the cached value.
func (s *State) NodeStatus(addr string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes.get(addr)
	if !ok {
		return "", false
	}
	return s.updateNodeStatus(node), true
}

// UpdateGroupStatus recomputes the status of one group.
func (s *State) UpdateGroupStatus(groupID int) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups.get(groupID)
	if !ok {
		return "", false
	}
	return s.updateGroupStatus(group), true
}

// UpdateCoupleStatus recomputes the status of one couple, refreshing
// its member groups and their nodes on the way.
func (s *State) UpdateCoupleStatus(coupleID string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	couple, ok := s.couples.get(coupleID)
	if !ok {
		return "", false
	}
	return s.updateCoupleStatus(couple), true
}

// UpdateStatusRecursive refreshes the group, its nodes, and the
// enclosing couple if there is one.
func (s *State) UpdateStatusRecursive(groupID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups.get(groupID)
	if !ok {
		return
	}
	s.updateStatusRecursive(group)
}

func (s *State) updateStatusRecursive(group *Group) {
	if couple, ok := s.couples.get(group.CoupleID); group.CoupleID != "" && ok {
		s.updateCoupleStatus(couple)
		return
	}
	s.updateGroupStatus(group)
}

// UpdateAllStatuses refreshes every couple and every uncoupled group.
func (s *State) UpdateAllStatuses() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, couple := range s.couples.values() {
		s.updateCoupleStatus(couple)
	}
	for _, group := range s.groups.values() {
		if group.CoupleID == "" {
			s.updateGroupStatus(group)
		}
	}
}

// updateNodeStatus recomputes a node's status from its stat snapshot.
func (s *State) updateNodeStatus(node *Node) Status {
	switch {
	case node.Destroyed:
		node.Status = StatusBad
		node.StatusText = fmt.Sprintf("Node %s is destroyed", node.Addr)
	case node.Stat == nil:
		node.Status = StatusInit
		node.StatusText = fmt.Sprintf("No statistics gathered for node %s", node.Addr)
	case node.Stat.TS.Before(s.now().Add(-s.stallTimeout)):
		node.Status = StatusStalled
		node.StatusText = fmt.Sprintf("Statistics for node %s are too old: gathered %d seconds ago",
			node.Addr, int(s.now().Sub(node.Stat.TS).Seconds()))
	case node.ReadOnly:
		node.Status = StatusRO
		node.StatusText = fmt.Sprintf("Node %s is in read-only state", node.Addr)
	default:
		node.Status = StatusOK
		node.StatusText = fmt.Sprintf("Node %s is OK", node.Addr)
	}
	return node.Status
}

// updateGroupStatus recomputes a group's status; the first matching
// rule wins. Node statuses are refreshed only once the metadata rules
// pass, so a group still waiting for its first metakey read leaves
// its nodes untouched.
func (s *State) updateGroupStatus(group *Group) Status {
	if len(group.NodeAddrs) == 0 {
		group.Status = StatusInit
		group.StatusText = fmt.Sprintf("Group %d is in INIT state because no nodes serve it", group.ID)
		return group.Status
	}

	if group.Meta == nil || len(group.Meta.Couple) == 0 {
		group.Status = StatusInit
		group.StatusText = fmt.Sprintf("Group %d is in INIT state because there is no coupling info", group.ID)
		return group.Status
	}

	var readOnly bool
	allOK := true
	for _, addr := range group.NodeAddrs {
		node, ok := s.nodes.get(addr)
		if !ok {
			allOK = false
			continue
		}
		switch s.updateNodeStatus(node) {
		case StatusOK:
		case StatusRO:
			readOnly = true
			allOK = false
		default:
			allOK = false
		}
	}

	if readOnly {
		group.Status = StatusRO
		group.StatusText = fmt.Sprintf("Group %d is in read-only state because it has read-only nodes", group.ID)
		return group.Status
	}
	if !allOK {
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d is in BAD state because some node statuses are not OK", group.ID)
		return group.Status
	}

	couple, coupled := s.couples.get(group.CoupleID)
	if group.CoupleID == "" || !coupled {
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d is in BAD state because its couple is not assembled", group.ID)
		return group.Status
	}
	if !s.checkCoupleGroups(couple, group.Meta.Couple) {
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d is in BAD state because the couple consistency check failed", group.ID)
		return group.Status
	}
	if group.Meta.Namespace == "" {
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d is in BAD state because no namespace is assigned to it", group.ID)
		return group.Status
	}
	if ns, ok := s.coupleNamespace(couple); !ok || group.Meta.Namespace != ns {
		group.Status = StatusBad
		group.StatusText = fmt.Sprintf("Group %d is in BAD state because its namespace does not match the couple namespace", group.ID)
		return group.Status
	}

	group.Status = StatusCoupled
	group.StatusText = fmt.Sprintf("Group %d is OK", group.ID)
	return group.Status
}

// updateCoupleStatus refreshes member groups bottom-up and derives
// the couple status from the results.
func (s *State) updateCoupleStatus(couple *Couple) Status {
	members := make([]*Group, 0, len(couple.GroupIDs))
	statuses := make([]Status, 0, len(couple.GroupIDs))
	for _, gid := range couple.GroupIDs {
		group, ok := s.groups.get(gid)
		if !ok {
			continue
		}
		members = append(members, group)
		statuses = append(statuses, s.updateGroupStatus(group))
	}
	if len(members) == 0 {
		couple.Status = StatusInit
		couple.StatusText = fmt.Sprintf("Couple %s has no member groups", couple.ID)
		return couple.Status
	}

	first := members[0].Meta
	for _, member := range members {
		if !first.Equal(member.Meta) {
			couple.Status = StatusBad
			couple.StatusText = fmt.Sprintf("Couple %s groups have inconsistent metadata", couple.ID)
			return couple.Status
		}
	}

	if allCoupled(statuses) {
		if couple.Frozen {
			couple.Status = StatusFrozen
			couple.StatusText = fmt.Sprintf("Couple %s is frozen", couple.ID)
		} else {
			couple.Status = StatusOK
			couple.StatusText = fmt.Sprintf("Couple %s is OK", couple.ID)
		}
		return couple.Status
	}

	switch {
	case hasStatus(statuses, StatusInit):
		couple.Status = StatusInit
		couple.StatusText = fmt.Sprintf("Couple %s has uninitialized groups", couple.ID)
	case hasStatus(statuses, StatusBad):
		couple.Status = StatusBad
		couple.StatusText = fmt.Sprintf("Couple %s has groups in BAD state", couple.ID)
	case hasStatus(statuses, StatusRO):
		couple.Status = StatusRO
		couple.StatusText = fmt.Sprintf("Couple %s has read-only groups", couple.ID)
	default:
		couple.Status = StatusBad
		couple.StatusText = fmt.Sprintf("Couple %s groups are in an inconsistent state", couple.ID)
	}
	return couple.Status
}

// checkCoupleGroups verifies that every member's meta names the same
// id set and that the set matches the couple's own membership.
func (s *State) checkCoupleGroups(couple *Couple, ids []int) bool {
	want := idSet(ids)
	for _, gid := range couple.GroupIDs {
		member, ok := s.groups.get(gid)
		if !ok || member.Meta == nil || len(member.Meta.Couple) == 0 {
			return false
		}
		if !sameIDSet(want, idSet(member.Meta.Couple)) {
			return false
		}
	}
	return sameIDSet(want, idSet(couple.GroupIDs))
}

// coupleNamespace is the namespace of the couple's first group.
func (s *State) coupleNamespace(couple *Couple) (string, bool) {
	if len(couple.GroupIDs) == 0 {
		return "", false
	}
	group, ok := s.groups.get(couple.GroupIDs[0])
	if !ok || group.Meta == nil {
		return "", false
	}
	return group.Meta.Namespace, true
}

// Hosts returns a copy of every known host in discovery order.
func (s *State) Hosts() []*Host {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hosts := s.hosts.values()
	out := make([]*Host, len(hosts))
	for i, h := range hosts {
		out[i] = h.clone()
	}
	return out
}

// Nodes returns a copy of every known node in discovery order.
func (s *State) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := s.nodes.values()
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

// Groups returns a copy of every known group in discovery order.
func (s *State) Groups() []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := s.groups.values()
	out := make([]*Group, len(groups))
	for i, g := range groups {
		out[i] = g.clone()
	}
	return out
}

// Couples returns a copy of every known couple in discovery order.
func (s *State) Couples() []*Couple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	couples := s.couples.values()
	out := make([]*Couple, len(couples))
	for i, c := range couples {
		out[i] = c.clone()
	}
	return out
}

// Host looks up one host by address.
func (s *State) Host(addr string) (*Host, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	host, ok := s.hosts.get(addr)
	if !ok {
		return nil, false
	}
	return host.clone(), true
}

// Node looks up one node by host:port.
func (s *State) Node(addr string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes.get(addr)
	if !ok {
		return nil, false
	}
	return node.clone(), true
}

// Group looks up one group by id.
func (s *State) Group(id int) (*Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups.get(id)
	if !ok {
		return nil, false
	}
	return group.clone(), true
}

// Couple looks up one couple by its sorted-id key.
func (s *State) Couple(id string) (*Couple, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	couple, ok := s.couples.get(id)
	if !ok {
		return nil, false
	}
	return couple.clone(), true
}

// CoupleNamespace returns the namespace of a couple, derived from its
// first member's meta.
func (s *State) CoupleNamespace(coupleID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	couple, ok := s.couples.get(coupleID)
	if !ok {
		return "", false
	}
	return s.coupleNamespace(couple)
}

// UncoupledGroups returns every group without a couple, in discovery
// order.
func (s *State) UncoupledGroups() []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Group
	for _, group := range s.groups.values() {
		if group.CoupleID == "" {
			out = append(out, group.clone())
		}
	}
	return out
}

// GroupStat sums the stats of a group's nodes. It returns nil while
// the group has no nodes or any node is missing its first snapshot.
func (s *State) GroupStat(groupID int) *NodeStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups.get(groupID)
	if !ok {
		return nil
	}
	return s.groupStat(group)
}

func (s *State) groupStat(group *Group) *NodeStat {
	var total *NodeStat
	for _, addr := range group.NodeAddrs {
		node, ok := s.nodes.get(addr)
		if !ok || node.Stat == nil {
			return nil
		}
		if total == nil {
			total = node.Stat
		} else {
			total = total.Add(node.Stat)
		}
	}
	return total
}

// CoupleStat intersects the aggregate stats of a couple's groups. It
// returns nil while any member group's stat is unknown.
func (s *State) CoupleStat(coupleID string) *NodeStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	couple, ok := s.couples.get(coupleID)
	if !ok {
		return nil
	}

	var total *NodeStat
	for _, gid := range couple.GroupIDs {
		group, ok := s.groups.get(gid)
		if !ok {
			return nil
		}
		stat := s.groupStat(group)
		if stat == nil {
			return nil
		}
		if total == nil {
			total = stat
		} else {
			total = total.Bottleneck(stat)
		}
	}
	return total
}

// MaxGroupID is the highest group id the model has observed, or zero
// for an empty model.
func (s *State) MaxGroupID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, group := range s.groups.values() {
		if group.ID > max {
			max = group.ID
		}
	}
	return max
}

func allCoupled(statuses []Status) bool {
	for _, st := range statuses {
		if st != StatusCoupled {
			return false
		}
	}
	return true
}

func hasStatus(statuses []Status, status Status) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func idSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sameIDSet(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func removeString(values []string, want string) []string {
	for i, v := range values {
		if v == want {
			return append(values[:i], values[i+1:]...)
		}
	}
	return values
}
