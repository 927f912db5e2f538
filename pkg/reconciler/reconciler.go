package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/cuemby/mastermind/pkg/balancelogic"
	"github.com/cuemby/mastermind/pkg/config"
	"github.com/cuemby/mastermind/pkg/elliptics"
	"github.com/cuemby/mastermind/pkg/events"
	"github.com/cuemby/mastermind/pkg/infrastructure"
	"github.com/cuemby/mastermind/pkg/log"
	"github.com/cuemby/mastermind/pkg/metrics"
	"github.com/cuemby/mastermind/pkg/timedqueue"
	"github.com/cuemby/mastermind/pkg/topology"
)

// Task ids on the timed queue. Stable ids make rescheduling replace
// the pending task instead of stacking duplicates.
const (
	loadNodesTaskID   = "load_nodes"
	groupsMetaTaskID  = "update_symms_for_groups"
	couplesMetaTaskID = "update_meta_for_couples"
)

// Updater keeps the topology model in sync with the fleet. It reloads
// node statistics periodically, sweeps the per-group and per-couple
// metadata keys, and maintains the max_group bookkeeping key. All of
// its work runs as tasks on one timed queue, so reloads and sweeps
// never overlap.
type Updater struct {
	client  elliptics.Client
	state   *topology.State
	queue   *timedqueue.Queue
	history *infrastructure.Store
	broker  *events.Broker
	balance *balancelogic.Config

	storageTimeout time.Duration
	metaGroups     []int
	metaTimeout    time.Duration

	reloadPeriod  time.Duration
	groupReadGap  time.Duration
	coupleReadGap time.Duration

	// timestamps holds the completion times of the two most recent
	// reloads; their spread drives the balancer staleness cutoff
	mu         sync.Mutex
	timestamps [2]time.Time

	loaded atomic.Bool

	logger zerolog.Logger
	now    func() time.Time
}

// New wires an updater to its collaborators. The model stays marked
// not ready until the first reload has ingested statistics.
func New(client elliptics.Client, state *topology.State, queue *timedqueue.Queue,
	history *infrastructure.Store, broker *events.Broker, balance *balancelogic.Config,
	cfg *config.Config) *Updater {

	now := time.Now()
	u := &Updater{
		client:         client,
		state:          state,
		queue:          queue,
		history:        history,
		broker:         broker,
		balance:        balance,
		storageTimeout: time.Duration(cfg.Elliptics.WaitTimeout),
		metaGroups:     cfg.Metadata.Groups,
		metaTimeout:    time.Duration(cfg.Metadata.WaitTimeout),
		reloadPeriod:   time.Duration(cfg.Reconciler.NodesReloadPeriod),
		groupReadGap:   time.Duration(cfg.Reconciler.GroupReadGap),
		coupleReadGap:  time.Duration(cfg.Reconciler.CoupleReadGap),
		timestamps:     [2]time.Time{now, now},
		logger:         log.WithComponent("reconciler"),
		now:            time.Now,
	}

	metrics.RegisterComponent("reconciler", false, "waiting for initial load")
	return u
}

// Start performs the initial synchronous load and schedules the
// periodic reloads on the queue. It returns once the model holds a
// first full view of the fleet.
func (u *Updater) Start() {
	u.loadNodes(false)
}

// Stop shuts the timed queue down: queued reloads are dropped, a
// running one finishes first.
func (u *Updater) Stop() {
	u.queue.Shutdown()
}

// ForceNodesUpdate schedules an immediate reload, replacing any
// pending one. A reload already in flight is unaffected; the forced
// run starts right after it.
func (u *Updater) ForceNodesUpdate() bool {
	u.logger.Info().Msg("Forcing nodes update")
	u.queue.AddTaskIn(loadNodesTaskID, 0, func() { u.loadNodes(true) })
	return true
}

// loadNodes is the periodic reload task: fetch statistics, run or
// schedule the metadata sweeps, refresh max_group. Whatever happens,
// the next reload is scheduled and the staleness cutoff advanced.
func (u *Updater) loadNodes(delayed bool) {
	u.logger.Info().Msg("Start loading units")
	timer := metrics.NewTimer()

	statsOK := false
	defer func() {
		u.queue.AddTaskIn(loadNodesTaskID, u.reloadPeriod, func() { u.loadNodes(true) })

		now := u.now()
		u.mu.Lock()
		u.timestamps = [2]time.Time{u.timestamps[1], now}
		previous := u.timestamps[0]
		u.mu.Unlock()

		age := now.Sub(previous)
		if floor := 3 * u.reloadPeriod; age < floor {
			age = floor
		}
		u.balance.SetDynamicTooOldAge(age)

		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileRunsTotal.Inc()

		if statsOK {
			if u.loaded.CompareAndSwap(false, true) {
				metrics.UpdateComponent("reconciler", true, "model loaded")
			}
			u.publish(events.EventReconcileDone, "reconciliation completed", map[string]string{
				"groups":  strconv.Itoa(len(u.state.Groups())),
				"couples": strconv.Itoa(len(u.state.Couples())),
			})
		}
	}()

	if err := u.executeTasks(delayed); err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		u.logger.Error().Err(err).Msg("Error while loading node stats")
		return
	}
	statsOK = true

	if err := u.refreshMaxGroup(); err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		u.logger.Error().Err(err).Msg("Failed to refresh max group")
	}
}

// executeTasks ingests a fresh statistics batch and triggers the two
// metadata sweeps, inline on the initial load and with the configured
// gaps afterwards.
func (u *Updater) executeTasks(delayed bool) error {
	ctx := context.Background()

	s := u.client.NewSession()
	s.SetTimeout(u.storageTimeout)

	rows, err := s.StatLogCount(ctx)
	if err != nil {
		u.logger.Warn().Err(err).Msg("stat_log_count failed, falling back to stat_log")
		rows, err = s.StatLog(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch node statistics: %w", err)
	}

	u.state.UpdateStatistics(rows)
	u.snapshotHistory()

	if delayed {
		u.queue.AddTaskIn(groupsMetaTaskID, u.groupReadGap, u.updateSymmGroups)
		u.queue.AddTaskIn(couplesMetaTaskID, u.coupleReadGap, u.updateCouplesMeta)
	} else {
		u.updateSymmGroups()
		u.updateCouplesMeta()
	}
	return nil
}

// updateSymmGroups sweeps the symmetric-groups key of every known
// group: parallel reads, then a drain that prefers groups referenced
// by already-drained metadata, so couples assemble as soon as all
// their members' views are in.
func (u *Updater) updateSymmGroups() {
	groups := u.state.Groups()
	if len(groups) == 0 {
		return
	}

	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[int][]byte, len(groups))
	)
	for _, group := range groups {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			s := u.client.NewSession()
			s.SetTimeout(u.storageTimeout)
			s.AddGroups([]int{id})

			blob, err := s.ReadData(ctx, elliptics.SymmetricGroupsKey)
			if err != nil {
				if errors.Is(err, elliptics.ErrNotFound) {
					u.logger.Debug().Int("group", id).Msg("No symmetric groups key")
				} else {
					u.logger.Warn().Err(err).Int("group", id).Msg("Failed to read symmetric groups")
				}
				return
			}

			mu.Lock()
			results[id] = blob
			mu.Unlock()
		}(group.ID)
	}
	wg.Wait()

	// Groups whose key could not be read lose their meta. The status
	// refresh runs the cleared group through the regular rules, so an
	// uncoupled group settles in INIT rather than staying BAD.
	for _, group := range groups {
		if _, ok := results[group.ID]; !ok {
			_ = u.state.ApplyGroupMeta(group.ID, nil)
			u.state.UpdateStatusRecursive(group.ID)
		}
	}

	referenced := make(map[int]struct{})
	for len(results) > 0 {
		id, ok := popReferenced(referenced, results)
		if !ok {
			id = lo.Min(lo.Keys(results))
		}
		blob := results[id]
		delete(results, id)

		u.processGroupMeta(id, blob, referenced)
	}
}

// processGroupMeta installs one freshly read metadata blob, schedules
// the referenced peers for preferred draining and assembles the
// couple the blob names. Failures clear the group's meta; the group
// and its couple are refreshed either way.
func (u *Updater) processGroupMeta(groupID int, blob []byte, referenced map[int]struct{}) {
	defer u.state.UpdateStatusRecursive(groupID)

	if err := u.state.ApplyGroupMeta(groupID, blob); err != nil {
		u.logger.Warn().Err(err).Int("group", groupID).Msg("Failed to parse symmetric groups")
		u.publish(events.EventGroupBad, fmt.Sprintf("group %d has unparseable metadata", groupID),
			map[string]string{"group": strconv.Itoa(groupID)})
		return
	}

	group, ok := u.state.Group(groupID)
	if !ok || group.Meta == nil {
		return
	}

	couple := group.Meta.Couple
	u.logger.Info().Int("group", groupID).Ints("couple", couple).Msg("Read symmetric groups")

	for _, peer := range couple {
		if peer != groupID {
			referenced[peer] = struct{}{}
		}
	}

	key := topology.CoupleKey(couple)
	if _, exists := u.state.Couple(key); exists {
		return
	}
	if _, err := u.state.EnsureCouple(couple); err != nil {
		u.logger.Error().Err(err).Int("group", groupID).Str("couple", key).Msg("Failed to assemble couple")
		_ = u.state.ApplyGroupMeta(groupID, nil)
		return
	}
	u.publish(events.EventCoupleCreated, fmt.Sprintf("couple %s assembled", key),
		map[string]string{"couple": key})
}

// updateCouplesMeta sweeps the couple metakey of every known couple
// on the metadata session. An absent key resets the frozen flag.
func (u *Updater) updateCouplesMeta() {
	couples := u.state.Couples()
	if len(couples) == 0 {
		return
	}

	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string][]byte, len(couples))
	)
	for _, couple := range couples {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			blob, err := u.metaSession().ReadData(ctx, elliptics.CoupleMetaKey(id))
			if err != nil {
				if !errors.Is(err, elliptics.ErrNotFound) {
					u.logger.Warn().Err(err).Str("couple", id).Msg("Failed to read couple metadata")
				}
				return
			}

			mu.Lock()
			results[id] = blob
			mu.Unlock()
		}(couple.ID)
	}
	wg.Wait()

	for _, couple := range couples {
		if _, ok := results[couple.ID]; !ok {
			u.state.ApplyCoupleMeta(couple.ID, nil)
		}
	}

	for len(results) > 0 {
		id := lo.Min(lo.Keys(results))
		blob := results[id]
		delete(results, id)

		meta, err := topology.ParseCoupleMeta(blob)
		if err != nil {
			u.logger.Warn().Err(err).Str("couple", id).Msg("Failed to parse couple metadata")
			u.state.ApplyCoupleMeta(id, nil)
			continue
		}
		u.state.ApplyCoupleMeta(id, meta)
		u.logger.Debug().Str("couple", id).Bool("frozen", meta.Frozen).Msg("Updated couple metadata")
	}
}

// refreshMaxGroup advances the max_group key when the model has
// observed a higher group id than the stored one. Read failures fall
// back to zero, matching a first boot.
func (u *Updater) refreshMaxGroup() error {
	ctx := context.Background()
	s := u.metaSession()

	stored := 0
	if blob, err := s.ReadData(ctx, elliptics.MaxGroupKey); err == nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(string(blob))); convErr == nil {
			stored = n
		}
	}

	curr := u.state.MaxGroupID()
	if curr <= stored {
		return nil
	}
	if err := s.WriteData(ctx, elliptics.MaxGroupKey, []byte(strconv.Itoa(curr))); err != nil {
		return fmt.Errorf("failed to write max group: %w", err)
	}
	u.logger.Info().Int("max_group", curr).Msg("Advanced max group")
	return nil
}

// snapshotHistory writes an automatic history record for every group
// whose node set changed since the last record.
func (u *Updater) snapshotHistory() {
	if u.history == nil {
		return
	}
	for _, group := range u.state.Groups() {
		if len(group.NodeAddrs) == 0 {
			continue
		}
		if _, err := u.history.RecordNodes(group.ID, group.NodeAddrs); err != nil {
			u.logger.Warn().Err(err).Int("group", group.ID).Msg("Failed to record group history")
		}
	}
}

// metaSession mints a session scoped to the metadata couple.
func (u *Updater) metaSession() elliptics.Session {
	s := u.client.NewSession()
	s.SetTimeout(u.metaTimeout)
	s.AddGroups(u.metaGroups)
	return s
}

func (u *Updater) publish(t events.EventType, msg string, metadata map[string]string) {
	if u.broker == nil {
		return
	}
	u.broker.Publish(&events.Event{Type: t, Message: msg, Metadata: metadata})
}

// popReferenced takes any pending referenced group that still has an
// undrained result.
func popReferenced(referenced map[int]struct{}, results map[int][]byte) (int, bool) {
	for id := range referenced {
		delete(referenced, id)
		if _, ok := results[id]; ok {
			return id, true
		}
	}
	return 0, false
}
