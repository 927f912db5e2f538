package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/mastermind/pkg/config"
)

// Inventory resolves the datacenter a storage host lives in. Couples
// must span datacenters, so the balancer consults the inventory
// whenever it composes or inspects couples. Resolution is lazy: the
// topology model never stores the datacenter on the host entity.
type Inventory interface {
	// DC returns the datacenter of the host
	DC(ctx context.Context, hostAddr string) (string, error)
}

// Static resolves datacenters from a fixed mapping in the
// configuration file.
type Static struct {
	dcMap     map[string]string
	defaultDC string
}

// NewStatic creates a config-backed inventory. defaultDC may be empty,
// in which case unmapped hosts resolve to an error.
func NewStatic(dcMap map[string]string, defaultDC string) *Static {
	return &Static{
		dcMap:     dcMap,
		defaultDC: defaultDC,
	}
}

func (s *Static) DC(_ context.Context, hostAddr string) (string, error) {
	if dc, ok := s.dcMap[hostAddr]; ok {
		return dc, nil
	}
	if s.defaultDC != "" {
		return s.defaultDC, nil
	}
	return "", fmt.Errorf("no datacenter known for host %s", hostAddr)
}

// New builds the inventory selected by the configuration, wrapping it
// in the durable cache when a cache path is configured.
func New(cfg config.InventoryConfig) (Inventory, error) {
	var inner Inventory
	switch cfg.Driver {
	case "static":
		inner = NewStatic(cfg.DCMap, cfg.DefaultDC)
	case "http":
		if cfg.DirectoryURL == "" {
			return nil, fmt.Errorf("inventory driver %q requires directory_url", cfg.Driver)
		}
		inner = NewHTTPDirectory(cfg.DirectoryURL)
	default:
		return nil, fmt.Errorf("unknown inventory driver: %s", cfg.Driver)
	}

	if cfg.CachePath == "" {
		return inner, nil
	}
	return NewCached(inner, cfg.CachePath, time.Duration(cfg.CacheValidTime))
}
