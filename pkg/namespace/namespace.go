package namespace

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/cuemby/mastermind/pkg/config"
	"github.com/cuemby/mastermind/pkg/elliptics"
	"github.com/cuemby/mastermind/pkg/log"
	"github.com/cuemby/mastermind/pkg/topology"
)

// Accepted success-copies-num values
const (
	CopiesAny    = "any"
	CopiesQuorum = "quorum"
	CopiesAll    = "all"
)

// Namespace names are alphanumeric with _ and - allowed inside
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*[A-Za-z0-9]$`)

const settingsKeyPrefix = "mastermind:ns_settings:"

func settingsKey(ns string) string {
	return settingsKeyPrefix + ns
}

// Settings is the persisted configuration of one namespace. The blob
// carries the namespace name so a settings record is self-describing.
type Settings struct {
	Namespace        string `msgpack:"namespace"`
	GroupsCount      int    `msgpack:"groups-count"`
	SuccessCopiesNum string `msgpack:"success-copies-num"`
	StaticCouple     []int  `msgpack:"static-couple,omitempty"`
}

// Registry persists namespace settings in the metadata couple and keeps
// the namespace index key up to date.
type Registry struct {
	client  elliptics.Client
	state   *topology.State
	groups  []int
	timeout time.Duration
	logger  zerolog.Logger

	// mu serialises the index read-modify-write in Setup
	mu sync.Mutex
}

// NewRegistry returns a registry writing through the metadata couple.
func NewRegistry(client elliptics.Client, cfg config.MetadataConfig, state *topology.State) *Registry {
	return &Registry{
		client:  client,
		state:   state,
		groups:  cfg.Groups,
		timeout: time.Duration(cfg.WaitTimeout),
		logger:  log.WithComponent("namespace"),
	}
}

// session mints a metadata session scoped to this call
func (r *Registry) session() elliptics.Session {
	s := r.client.NewSession()
	s.SetTimeout(r.timeout)
	s.AddGroups(r.groups)
	return s
}

// Setup validates and persists the settings of a namespace, creating
// it if needed. Existing settings are replaced wholesale.
func (r *Registry) Setup(ctx context.Context, ns string, settings Settings) error {
	if err := r.validate(ns, settings); err != nil {
		return err
	}
	settings.Namespace = ns

	blob, err := msgpack.Marshal(&settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings for namespace %s: %w", ns, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session()
	if err := s.WriteData(ctx, settingsKey(ns), blob); err != nil {
		return fmt.Errorf("failed to write settings for namespace %s: %w", ns, err)
	}

	names, err := r.readIndex(ctx, s)
	if err != nil {
		return err
	}
	if !lo.Contains(names, ns) {
		names = append(names, ns)
		index, err := msgpack.Marshal(names)
		if err != nil {
			return fmt.Errorf("failed to encode namespace index: %w", err)
		}
		if err := s.WriteData(ctx, elliptics.NamespaceSettingsIndex, index); err != nil {
			return fmt.Errorf("failed to write namespace index: %w", err)
		}
	}

	r.logger.Info().
		Str("namespace", ns).
		Int("groups_count", settings.GroupsCount).
		Str("success_copies_num", settings.SuccessCopiesNum).
		Msg("Namespace configured")
	return nil
}

// Get returns the settings of one namespace.
func (r *Registry) Get(ctx context.Context, ns string) (*Settings, error) {
	blob, err := r.session().ReadData(ctx, settingsKey(ns))
	if errors.Is(err, elliptics.ErrNotFound) {
		return nil, fmt.Errorf("namespace %s does not exist", ns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings for namespace %s: %w", ns, err)
	}

	var settings Settings
	if err := msgpack.Unmarshal(blob, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for namespace %s: %w", ns, err)
	}
	return &settings, nil
}

// Names returns the registered namespaces in registration order.
func (r *Registry) Names(ctx context.Context) ([]string, error) {
	return r.readIndex(ctx, r.session())
}

// All returns the settings of every registered namespace. A namespace
// whose settings blob cannot be read is skipped with a warning rather
// than failing the whole listing.
func (r *Registry) All(ctx context.Context) (map[string]Settings, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Settings, len(names))
	for _, ns := range names {
		settings, err := r.Get(ctx, ns)
		if err != nil {
			r.logger.Warn().Err(err).Str("namespace", ns).Msg("Skipping unreadable namespace settings")
			continue
		}
		out[ns] = *settings
	}
	return out, nil
}

func (r *Registry) validate(ns string, settings Settings) error {
	if !nameRe.MatchString(ns) {
		return fmt.Errorf("invalid namespace name %q", ns)
	}
	if settings.GroupsCount <= 0 {
		return fmt.Errorf("groups-count must be a positive integer")
	}
	switch settings.SuccessCopiesNum {
	case CopiesAny, CopiesQuorum, CopiesAll:
	default:
		return fmt.Errorf("success-copies-num must be one of any, quorum or all")
	}
	if len(settings.StaticCouple) > 0 {
		if len(settings.StaticCouple) != settings.GroupsCount {
			return fmt.Errorf("static couple must have exactly %d groups", settings.GroupsCount)
		}
		key := topology.CoupleKey(settings.StaticCouple)
		if _, ok := r.state.Couple(key); !ok {
			return fmt.Errorf("static couple %s is not an existing couple", key)
		}
	}
	return nil
}

// readIndex decodes the namespace index key; an absent key is an empty
// registry, not an error.
func (r *Registry) readIndex(ctx context.Context, s elliptics.Session) ([]string, error) {
	blob, err := s.ReadData(ctx, elliptics.NamespaceSettingsIndex)
	if errors.Is(err, elliptics.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace index: %w", err)
	}

	var names []string
	if err := msgpack.Unmarshal(blob, &names); err != nil {
		return nil, fmt.Errorf("failed to decode namespace index: %w", err)
	}
	return names, nil
}
