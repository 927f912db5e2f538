package elliptics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/mastermind/pkg/config"
)

// ErrNotFound marks a key that is absent from every group the session
// is bound to. Callers branch on it with errors.Is.
var ErrNotFound = errors.New("key not found")

// Client owns the connection to the storage fleet and mints sessions.
type Client interface {
	// NewSession returns a fresh session with no groups bound
	NewSession() Session

	// Close releases the fleet connection
	Close() error
}

// Session is one scoped conversation with the fleet. A session is
// configured at the call site with a timeout and an explicit group
// set, used for a handful of operations and dropped.
type Session interface {
	// SetTimeout bounds every subsequent operation
	SetTimeout(timeout time.Duration)

	// AddGroups binds the session to a set of groups
	AddGroups(ids []int)

	// ReadData reads a key from the first bound group holding it
	ReadData(ctx context.Context, key string) ([]byte, error)

	// WriteData writes a key into every bound group
	WriteData(ctx context.Context, key string, data []byte) error

	// Remove deletes a key from every bound group; a missing key is
	// not an error
	Remove(ctx context.Context, key string) error

	// LookupAddr resolves a key within one group to the node address
	// serving it
	LookupAddr(ctx context.Context, key string, groupID int) (string, error)

	// StatLogCount returns the per-node raw counter rows
	StatLogCount(ctx context.Context) ([]StatRow, error)

	// StatLog is the legacy fallback for StatLogCount
	StatLog(ctx context.Context) ([]StatRow, error)
}

// New creates the storage client selected by the configuration.
func New(cfg config.EllipticsConfig) (Client, error) {
	switch cfg.Driver {
	case "inmem":
		return NewInmem(), nil
	default:
		return nil, fmt.Errorf("unknown elliptics driver: %s", cfg.Driver)
	}
}
