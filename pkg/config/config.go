package config

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// Config holds the static configuration for the mastermind agent.
// It is loaded once at startup and never mutated afterwards.
type Config struct {
	// GRPCAddr is the listen address of the request/response API
	GRPCAddr string `yaml:"grpc_addr"`

	// MetricsAddr is the listen address of the metrics/health HTTP server
	MetricsAddr string `yaml:"metrics_addr"`

	Log            LogConfig            `yaml:"log"`
	Elliptics      EllipticsConfig      `yaml:"elliptics"`
	Metadata       MetadataConfig       `yaml:"metadata"`
	Reconciler     ReconcilerConfig     `yaml:"reconciler"`
	Balancer       BalancerConfig       `yaml:"balancer"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Inventory      InventoryConfig      `yaml:"inventory"`
}

// LogConfig controls log output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EllipticsConfig configures the storage cluster client
type EllipticsConfig struct {
	// Driver selects the storage client implementation
	Driver string `yaml:"driver"`

	// Remotes are the initial cluster endpoints (host:port)
	Remotes []string `yaml:"remotes"`

	// WaitTimeout bounds every read/write issued against the cluster
	WaitTimeout model.Duration `yaml:"wait_timeout"`
}

// MetadataConfig configures the metadata couple used for couple metakeys
// and coordinator bookkeeping records
type MetadataConfig struct {
	// Groups are the group ids of the metadata couple
	Groups []int `yaml:"groups"`

	WaitTimeout model.Duration `yaml:"wait_timeout"`
}

// ReconcilerConfig controls the periodic model rebuild
type ReconcilerConfig struct {
	// NodesReloadPeriod is the gap between full monitor-stat reloads
	NodesReloadPeriod model.Duration `yaml:"nodes_reload_period"`

	// StallTimeout marks a node STALLED when its stat is older than this
	StallTimeout model.Duration `yaml:"stall_timeout"`

	// GroupReadGap delays the group metakey sweep after a reload
	GroupReadGap model.Duration `yaml:"group_read_gap"`

	// CoupleReadGap delays the couple metakey sweep after a reload
	CoupleReadGap model.Duration `yaml:"couple_read_gap"`
}

// BalancerConfig carries the tunables of the balancing handlers
type BalancerConfig struct {
	// MinFreeSpace closes a couple for writes when any group drops
	// below this many free bytes
	MinFreeSpace uint64 `yaml:"min_free_space"`

	// MinFreeSpaceRelative closes a couple for writes when any group
	// drops below this fraction of total space
	MinFreeSpaceRelative float64 `yaml:"min_free_space_relative"`
}

// InfrastructureConfig configures the durable group history store
type InfrastructureConfig struct {
	// DatabasePath is the bolt file holding group history records
	DatabasePath string `yaml:"database_path"`
}

// InventoryConfig configures host-to-datacenter resolution
type InventoryConfig struct {
	// Driver selects the inventory implementation
	Driver string `yaml:"driver"`

	// DCMap statically maps hostnames to datacenters (static driver)
	DCMap map[string]string `yaml:"dc_map"`

	// DefaultDC is returned for hosts missing from the mapping
	DefaultDC string `yaml:"default_dc"`

	// DirectoryURL is the base URL of the host directory (http driver)
	DirectoryURL string `yaml:"directory_url"`

	// CachePath is the bolt file backing the resolution cache
	CachePath string `yaml:"cache_path"`

	// CacheValidTime bounds the age of cached resolutions
	CacheValidTime model.Duration `yaml:"cache_valid_time"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		GRPCAddr:    ":8080",
		MetricsAddr: ":9090",
		Log: LogConfig{
			Level: "info",
		},
		Elliptics: EllipticsConfig{
			Driver:      "inmem",
			WaitTimeout: model.Duration(5 * time.Second),
		},
		Metadata: MetadataConfig{
			WaitTimeout: model.Duration(5 * time.Second),
		},
		Reconciler: ReconcilerConfig{
			NodesReloadPeriod: model.Duration(60 * time.Second),
			StallTimeout:      model.Duration(120 * time.Second),
			GroupReadGap:      model.Duration(1 * time.Second),
			CoupleReadGap:     model.Duration(1 * time.Second),
		},
		Balancer: BalancerConfig{
			MinFreeSpace:         0,
			MinFreeSpaceRelative: 0,
		},
		Infrastructure: InfrastructureConfig{
			DatabasePath: "/var/lib/mastermind/infrastructure.db",
		},
		Inventory: InventoryConfig{
			Driver:         "static",
			DefaultDC:      "unknown",
			CachePath:      "/var/lib/mastermind/inventory.db",
			CacheValidTime: model.Duration(24 * time.Hour),
		},
	}
}

// Load reads a YAML config file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the agent cannot run with
func (c *Config) Validate() error {
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpc_addr is required")
	}
	if c.Elliptics.Driver == "" {
		return fmt.Errorf("elliptics driver is required")
	}
	if c.Elliptics.Driver != "inmem" && len(c.Elliptics.Remotes) == 0 {
		return fmt.Errorf("elliptics remotes are required for driver %q", c.Elliptics.Driver)
	}
	if c.Reconciler.NodesReloadPeriod <= 0 {
		return fmt.Errorf("nodes_reload_period must be positive")
	}
	if c.Reconciler.StallTimeout <= 0 {
		return fmt.Errorf("stall_timeout must be positive")
	}
	if c.Balancer.MinFreeSpaceRelative < 0 || c.Balancer.MinFreeSpaceRelative > 1 {
		return fmt.Errorf("min_free_space_relative must be within [0, 1]")
	}
	if c.Inventory.Driver == "" {
		return fmt.Errorf("inventory driver is required")
	}
	return nil
}
