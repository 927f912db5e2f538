package balancer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/mastermind/pkg/balancelogic"
	"github.com/cuemby/mastermind/pkg/config"
	"github.com/cuemby/mastermind/pkg/elliptics"
	"github.com/cuemby/mastermind/pkg/events"
	"github.com/cuemby/mastermind/pkg/infrastructure"
	"github.com/cuemby/mastermind/pkg/inventory"
	"github.com/cuemby/mastermind/pkg/log"
	"github.com/cuemby/mastermind/pkg/namespace"
	"github.com/cuemby/mastermind/pkg/topology"
)

// maxGroupsPerAllocation bounds a single group number allocation.
const maxGroupsPerAllocation = 100

// NodesUpdater triggers an immediate topology reload. Satisfied by
// the reconciler updater.
type NodesUpdater interface {
	ForceNodesUpdate() bool
}

// Deps carries the collaborators of the balancer.
type Deps struct {
	Client    elliptics.Client
	State     *topology.State
	Inventory inventory.Inventory
	Registry  *namespace.Registry
	History   *infrastructure.Store
	Broker    *events.Broker
	Balance   *balancelogic.Config
	Updater   NodesUpdater
	Config    *config.Config
}

// Balancer implements the coordinator operations: composing and
// breaking couples, freezing, repairs, group number allocation and
// the read-only topology queries. It owns no state of its own; the
// topology model is the source of truth and storage writes go through
// per-operation sessions.
type Balancer struct {
	client    elliptics.Client
	state     *topology.State
	inventory inventory.Inventory
	registry  *namespace.Registry
	history   *infrastructure.Store
	broker    *events.Broker
	balance   *balancelogic.Config
	updater   NodesUpdater
	cfg       *config.Config

	storageTimeout time.Duration
	metaGroups     []int
	metaTimeout    time.Duration

	// mu serialises the mutating operations so their
	// read-check-write sequences cannot interleave
	mu sync.Mutex

	logger zerolog.Logger
	now    func() time.Time
}

// New assembles a balancer from its dependencies.
func New(deps Deps) *Balancer {
	return &Balancer{
		client:         deps.Client,
		state:          deps.State,
		inventory:      deps.Inventory,
		registry:       deps.Registry,
		history:        deps.History,
		broker:         deps.Broker,
		balance:        deps.Balance,
		updater:        deps.Updater,
		cfg:            deps.Config,
		storageTimeout: time.Duration(deps.Config.Elliptics.WaitTimeout),
		metaGroups:     deps.Config.Metadata.Groups,
		metaTimeout:    time.Duration(deps.Config.Metadata.WaitTimeout),
		logger:         log.WithComponent("balancer"),
		now:            time.Now,
	}
}

// storageSession mints a session bound to the given data groups.
func (b *Balancer) storageSession(groups ...int) elliptics.Session {
	s := b.client.NewSession()
	s.SetTimeout(b.storageTimeout)
	if len(groups) > 0 {
		s.AddGroups(groups)
	}
	return s
}

// metaSession mints a session bound to the metadata couple.
func (b *Balancer) metaSession() elliptics.Session {
	s := b.client.NewSession()
	s.SetTimeout(b.metaTimeout)
	s.AddGroups(b.metaGroups)
	return s
}

func (b *Balancer) publish(t events.EventType, msg string, metadata map[string]string) {
	if b.broker == nil {
		return
	}
	b.broker.Publish(&events.Event{Type: t, Message: msg, Metadata: metadata})
}

// CoupleGroups composes a new couple of size uncoupled groups, one
// per datacenter. Every id in mandatory is taken as given, consuming
// its datacenter from the pool; the rest are drawn from the remaining
// datacenters. On success the couple metadata is written into every
// member and the member ids are returned in ascending order.
func (b *Balancer) CoupleGroups(ctx context.Context, size int, mandatory []int, ns string) ([]int, error) {
	if size <= 0 {
		return nil, fmt.Errorf("couple size must be positive")
	}
	if len(mandatory) > size {
		return nil, fmt.Errorf("Too many mandatory groups")
	}
	if ns == "" {
		ns = topology.DefaultNamespace
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pool, err := b.uncoupledPool(ctx)
	if err != nil {
		return nil, err
	}

	chosen := make([]int, 0, size)
	usedDC := make(map[string]bool)

	seen := make(map[int]bool, len(mandatory))
	for _, id := range mandatory {
		if seen[id] {
			return nil, fmt.Errorf("group %d is listed twice", id)
		}
		seen[id] = true

		group, ok := b.state.Group(id)
		if !ok {
			return nil, fmt.Errorf("group %d is not found", id)
		}
		if group.CoupleID != "" {
			return nil, fmt.Errorf("group %d is coupled", id)
		}
		dc, ok := pool[id]
		if !ok {
			return nil, fmt.Errorf("group %d has nodes that are not OK", id)
		}
		if usedDC[dc] {
			return nil, fmt.Errorf("groups must be in different dcs")
		}
		usedDC[dc] = true
		chosen = append(chosen, id)
		delete(pool, id)
	}

	// Bucket the remaining pool by datacenter, skipping datacenters
	// already consumed by mandatory groups.
	byDC := make(map[string][]int)
	for id, dc := range pool {
		if usedDC[dc] {
			continue
		}
		byDC[dc] = append(byDC[dc], id)
	}

	need := size - len(chosen)
	if len(byDC) < need {
		return nil, fmt.Errorf("Not enough dcs")
	}

	dcs := make([]string, 0, len(byDC))
	for dc := range byDC {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)
	for _, dc := range dcs {
		if need == 0 {
			break
		}
		ids := byDC[dc]
		sort.Ints(ids)
		chosen = append(chosen, ids[0])
		need--
	}

	sort.Ints(chosen)
	couple, err := b.state.EnsureCouple(chosen)
	if err != nil {
		return nil, err
	}

	if _, err := b.makeSymmGroup(ctx, couple.GroupIDs, ns); err != nil {
		return nil, err
	}
	b.state.UpdateCoupleStatus(couple.ID)

	b.logger.Info().
		Str("couple", couple.ID).
		Str("namespace", ns).
		Msg("Couple composed")
	b.publish(events.EventCoupleCreated, fmt.Sprintf("couple %s composed", couple.ID), map[string]string{
		"couple":    couple.ID,
		"namespace": ns,
	})
	return couple.GroupIDs, nil
}

// uncoupledPool collects the uncoupled groups whose nodes are all OK,
// mapping group id to resolved datacenter.
func (b *Balancer) uncoupledPool(ctx context.Context) (map[int]string, error) {
	pool := make(map[int]string)
	for _, group := range b.state.UncoupledGroups() {
		if len(group.NodeAddrs) == 0 || !b.groupNodesOK(group) {
			continue
		}
		dc, err := b.groupDC(ctx, group)
		if err != nil {
			return nil, err
		}
		pool[group.ID] = dc
	}
	return pool, nil
}

// groupNodesOK reports whether every node of the group is currently
// OK. Node statuses are recomputed on the spot: uncoupled groups skip
// their nodes during the periodic status refresh.
func (b *Balancer) groupNodesOK(group *topology.Group) bool {
	for _, addr := range group.NodeAddrs {
		status, ok := b.state.NodeStatus(addr)
		if !ok || status != topology.StatusOK {
			return false
		}
	}
	return true
}

// groupDC resolves the datacenter a group lives in, taken from its
// first node's host. Groups never span datacenters.
func (b *Balancer) groupDC(ctx context.Context, group *topology.Group) (string, error) {
	if len(group.NodeAddrs) == 0 {
		return "", fmt.Errorf("group %d has no nodes", group.ID)
	}
	node, ok := b.state.Node(group.NodeAddrs[0])
	if !ok {
		return "", fmt.Errorf("node %s is not found", group.NodeAddrs[0])
	}
	dc, err := b.inventory.DC(ctx, node.HostAddr)
	if err != nil {
		return "", fmt.Errorf("failed to resolve datacenter of host %s: %w", node.HostAddr, err)
	}
	return dc, nil
}

// makeSymmGroup writes the couple metadata blob into every member
// group, mirroring each successful write into the model. It returns
// the members written so far and the first failure; members already
// written stay written.
func (b *Balancer) makeSymmGroup(ctx context.Context, ids []int, ns string) ([]int, error) {
	blob, err := topology.PackGroupMeta(&topology.GroupMeta{
		Version:   2,
		Couple:    ids,
		Namespace: ns,
	})
	if err != nil {
		return nil, err
	}

	good := make([]int, 0, len(ids))
	for _, id := range ids {
		s := b.storageSession(id)
		if err := s.WriteData(ctx, elliptics.SymmetricGroupsKey, blob); err != nil {
			return good, fmt.Errorf("failed to write metadata to group %d: %w", id, err)
		}
		if err := b.state.ApplyGroupMeta(id, blob); err != nil {
			return good, err
		}
		good = append(good, id)
	}
	return good, nil
}

// BreakCouple deletes the couple metadata from every member group and
// removes the couple from the model. Unless force is set, the literal
// confirmation string naming the couple and its current quality is
// required, wrapped in square brackets or not.
func (b *Balancer) BreakCouple(ctx context.Context, ids []int, confirmation string, force bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := topology.CoupleKey(ids)
	couple, ok := b.state.Couple(key)
	if !ok {
		return fmt.Errorf("couple %s is not found", key)
	}

	if !force {
		quality := "bad"
		if couple.Status == topology.StatusOK || couple.Status == topology.StatusFrozen {
			quality = "good"
		}
		want := fmt.Sprintf("Yes, I want to break %s couple %s", quality, key)
		got := strings.NewReplacer("[", "", "]", "").Replace(confirmation)
		if got != want {
			return fmt.Errorf("Incorrect confirmation string")
		}
	}

	for _, gid := range couple.GroupIDs {
		s := b.storageSession(gid)
		if err := s.Remove(ctx, elliptics.SymmetricGroupsKey); err != nil {
			return fmt.Errorf("failed to remove metadata from group %d: %w", gid, err)
		}
	}
	if err := b.metaSession().Remove(ctx, elliptics.CoupleMetaKey(key)); err != nil {
		b.logger.Warn().Err(err).Str("couple", key).Msg("Failed to remove couple metakey")
	}

	b.state.DestroyCouple(key)

	b.logger.Info().Str("couple", key).Bool("force", force).Msg("Couple broken")
	b.publish(events.EventCoupleDestroyed, fmt.Sprintf("couple %s broken", key), map[string]string{
		"couple": key,
	})
	return nil
}

// RepairGroups rewrites consistent couple metadata into every member
// of the broken couple containing the group. A couple that is good
// (OK or frozen) is refused.
func (b *Balancer) RepairGroups(ctx context.Context, groupID int, forceNamespace string) ([]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.state.Group(groupID)
	if !ok {
		return nil, fmt.Errorf("group %d is not found", groupID)
	}
	if group.CoupleID == "" {
		return nil, fmt.Errorf("group %d is not in a couple", groupID)
	}

	status, ok := b.state.UpdateCoupleStatus(group.CoupleID)
	if !ok {
		return nil, fmt.Errorf("couple %s is not found", group.CoupleID)
	}
	if status == topology.StatusOK || status == topology.StatusFrozen {
		return nil, fmt.Errorf("cannot repair, group %d is in couple %s", groupID, group.CoupleID)
	}

	couple, _ := b.state.Couple(group.CoupleID)

	// The namespace comes from the members that still carry metadata;
	// they must agree. forceNamespace only fills in when no member has
	// any metadata left.
	ns := ""
	for _, gid := range couple.GroupIDs {
		member, ok := b.state.Group(gid)
		if !ok || member.Meta == nil {
			continue
		}
		memberNS := member.Meta.Namespace
		if ns == "" {
			ns = memberNS
			continue
		}
		if memberNS != ns {
			return nil, fmt.Errorf("namespaces of groups in couple %s do not match", couple.ID)
		}
	}
	if ns == "" {
		if forceNamespace == "" {
			return nil, fmt.Errorf("cannot determine the namespace of couple %s", couple.ID)
		}
		ns = forceNamespace
	}

	if _, err := b.makeSymmGroup(ctx, couple.GroupIDs, ns); err != nil {
		return nil, err
	}
	b.state.UpdateCoupleStatus(couple.ID)

	b.logger.Info().Str("couple", couple.ID).Str("namespace", ns).Msg("Couple repaired")
	return couple.GroupIDs, nil
}

// FreezeCouple administratively closes the couple for new writes.
func (b *Balancer) FreezeCouple(ctx context.Context, coupleID string) error {
	return b.setFrozen(ctx, coupleID, true)
}

// UnfreezeCouple reopens a frozen couple for writes.
func (b *Balancer) UnfreezeCouple(ctx context.Context, coupleID string) error {
	return b.setFrozen(ctx, coupleID, false)
}

func (b *Balancer) setFrozen(ctx context.Context, coupleID string, frozen bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.state.Couple(coupleID); !ok {
		return fmt.Errorf("couple %s is not found", coupleID)
	}

	meta := &topology.CoupleMeta{}
	blob, err := b.metaSession().ReadData(ctx, elliptics.CoupleMetaKey(coupleID))
	switch {
	case errors.Is(err, elliptics.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read couple metakey: %w", err)
	default:
		parsed, perr := topology.ParseCoupleMeta(blob)
		if perr != nil {
			b.logger.Warn().Err(perr).Str("couple", coupleID).Msg("Replacing unparseable couple metakey")
		} else {
			meta = parsed
		}
	}

	if meta.Frozen == frozen {
		if frozen {
			return fmt.Errorf("Couple %s is already frozen", coupleID)
		}
		return fmt.Errorf("Couple %s is not frozen", coupleID)
	}
	meta.Frozen = frozen

	packed, err := topology.PackCoupleMeta(meta)
	if err != nil {
		return err
	}
	if err := b.metaSession().WriteData(ctx, elliptics.CoupleMetaKey(coupleID), packed); err != nil {
		return fmt.Errorf("failed to write couple metakey: %w", err)
	}
	b.state.ApplyCoupleMeta(coupleID, meta)

	if frozen {
		b.logger.Info().Str("couple", coupleID).Msg("Couple frozen")
		b.publish(events.EventCoupleFrozen, fmt.Sprintf("couple %s frozen", coupleID), map[string]string{
			"couple": coupleID,
		})
	} else {
		b.logger.Info().Str("couple", coupleID).Msg("Couple unfrozen")
		b.publish(events.EventCoupleUnfrozen, fmt.Sprintf("couple %s unfrozen", coupleID), map[string]string{
			"couple": coupleID,
		})
	}
	return nil
}

// NextGroupNumber allocates n consecutive group numbers above the
// persisted maximum and returns them. Zero is a valid request and
// touches nothing.
func (b *Balancer) NextGroupNumber(ctx context.Context, n int) ([]int, error) {
	if n < 0 || n > maxGroupsPerAllocation {
		return nil, fmt.Errorf("Incorrect groups count")
	}
	if n == 0 {
		return []int{}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.metaSession()
	max := 0
	if blob, err := s.ReadData(ctx, elliptics.MaxGroupKey); err == nil {
		if v, perr := strconv.Atoi(strings.TrimSpace(string(blob))); perr == nil {
			max = v
		}
	}

	if err := s.WriteData(ctx, elliptics.MaxGroupKey, []byte(strconv.Itoa(max+n))); err != nil {
		return nil, fmt.Errorf("failed to advance max group: %w", err)
	}

	ids := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, max+i)
	}
	return ids, nil
}

// DetachNode removes a node from its group and records the
// detachment in the group's history.
func (b *Balancer) DetachNode(ctx context.Context, groupID int, addr string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.state.DetachNode(groupID, addr); err != nil {
		return err
	}

	if b.history != nil {
		nodes := []string{}
		if group, ok := b.state.Group(groupID); ok {
			nodes = group.NodeAddrs
		}
		if err := b.history.RecordDetach(groupID, nodes, addr); err != nil {
			b.logger.Warn().Err(err).Int("group_id", groupID).Msg("Failed to record detachment")
		}
	}

	b.publish(events.EventNodeDetached, fmt.Sprintf("node %s detached from group %d", addr, groupID), map[string]string{
		"group": strconv.Itoa(groupID),
		"node":  addr,
	})
	return nil
}

// ForceNodesUpdate schedules an immediate topology reload.
func (b *Balancer) ForceNodesUpdate() bool {
	if b.updater == nil {
		return false
	}
	return b.updater.ForceNodesUpdate()
}

// NamespaceSetup validates and persists the settings of a namespace.
func (b *Balancer) NamespaceSetup(ctx context.Context, ns string, settings namespace.Settings) error {
	if b.registry == nil {
		return fmt.Errorf("namespace registry is not available")
	}
	return b.registry.Setup(ctx, ns, settings)
}

// NamespaceSettings returns the settings of one namespace.
func (b *Balancer) NamespaceSettings(ctx context.Context, ns string) (*namespace.Settings, error) {
	if b.registry == nil {
		return nil, fmt.Errorf("namespace registry is not available")
	}
	return b.registry.Get(ctx, ns)
}

// Namespaces returns the registered namespace names.
func (b *Balancer) Namespaces(ctx context.Context) ([]string, error) {
	if b.registry == nil {
		return nil, fmt.Errorf("namespace registry is not available")
	}
	return b.registry.Names(ctx)
}

// AllNamespaceSettings returns the settings of every registered
// namespace.
func (b *Balancer) AllNamespaceSettings(ctx context.Context) (map[string]namespace.Settings, error) {
	if b.registry == nil {
		return nil, fmt.Errorf("namespace registry is not available")
	}
	return b.registry.All(ctx)
}
