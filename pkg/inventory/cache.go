package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/mastermind/pkg/log"
)

var bucketDC = []byte("inventory_dc")

// cacheRecord is one cached resolution
type cacheRecord struct {
	DC string    `json:"dc"`
	TS time.Time `json:"ts"`
}

// Cached wraps an Inventory with a two-level cache: an in-memory map
// for the hot path and a bolt bucket so restarts come up warm.
// Records expire after the configured TTL; a TTL of zero or less
// disables expiry.
type Cached struct {
	inner Inventory
	db    *bolt.DB
	ttl   time.Duration

	mu  sync.RWMutex
	mem map[string]cacheRecord

	now    func() time.Time
	logger zerolog.Logger
}

// NewCached opens (or creates) the cache database at path and wraps
// inner with it.
func NewCached(inner Inventory, path string, ttl time.Duration) (*Cached, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDC)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create inventory cache bucket: %w", err)
	}

	return &Cached{
		inner:  inner,
		db:     db,
		ttl:    ttl,
		mem:    make(map[string]cacheRecord),
		now:    time.Now,
		logger: log.WithComponent("inventory"),
	}, nil
}

// Close closes the cache database
func (c *Cached) Close() error {
	return c.db.Close()
}

func (c *Cached) DC(ctx context.Context, hostAddr string) (string, error) {
	if rec, ok := c.fromMemory(hostAddr); ok {
		return rec.DC, nil
	}
	if rec, ok := c.fromDisk(hostAddr); ok {
		c.remember(hostAddr, rec)
		return rec.DC, nil
	}

	dc, err := c.inner.DC(ctx, hostAddr)
	if err != nil {
		return "", err
	}

	rec := cacheRecord{DC: dc, TS: c.now()}
	c.remember(hostAddr, rec)
	if err := c.persist(hostAddr, rec); err != nil {
		c.logger.Warn().Err(err).Str("host", hostAddr).Msg("failed to persist inventory record")
	}
	return dc, nil
}

func (c *Cached) fresh(rec cacheRecord) bool {
	return c.ttl <= 0 || c.now().Sub(rec.TS) < c.ttl
}

func (c *Cached) fromMemory(hostAddr string) (cacheRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.mem[hostAddr]
	if !ok || !c.fresh(rec) {
		return cacheRecord{}, false
	}
	return rec, true
}

func (c *Cached) fromDisk(hostAddr string) (cacheRecord, bool) {
	var rec cacheRecord
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDC).Get([]byte(hostAddr))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("host", hostAddr).Msg("failed to read inventory record")
		return cacheRecord{}, false
	}
	if !found || !c.fresh(rec) {
		return cacheRecord{}, false
	}
	return rec, true
}

func (c *Cached) remember(hostAddr string, rec cacheRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[hostAddr] = rec
}

func (c *Cached) persist(hostAddr string, rec cacheRecord) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDC).Put([]byte(hostAddr), data)
	})
}
