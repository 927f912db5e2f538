package inventory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingInventory records how often each host was resolved
type countingInventory struct {
	dcs   map[string]string
	calls int
}

func (c *countingInventory) DC(_ context.Context, hostAddr string) (string, error) {
	c.calls++
	dc, ok := c.dcs[hostAddr]
	if !ok {
		return "", fmt.Errorf("no datacenter known for host %s", hostAddr)
	}
	return dc, nil
}

func newTestCache(t *testing.T, inner Inventory, ttl time.Duration) (*Cached, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	cache, err := NewCached(inner, path, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, path
}

func TestCachedResolvesOnce(t *testing.T) {
	inner := &countingInventory{dcs: map[string]string{"10.0.0.1": "dc1"}}
	cache, _ := newTestCache(t, inner, time.Hour)

	for i := 0; i < 3; i++ {
		dc, err := cache.DC(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "dc1", dc)
	}

	assert.Equal(t, 1, inner.calls)
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := &countingInventory{dcs: map[string]string{}}
	cache, _ := newTestCache(t, inner, time.Hour)

	_, err := cache.DC(context.Background(), "10.0.0.9")
	require.Error(t, err)
	_, err = cache.DC(context.Background(), "10.0.0.9")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedSurvivesRestart(t *testing.T) {
	inner := &countingInventory{dcs: map[string]string{"10.0.0.1": "dc1"}}
	path := filepath.Join(t.TempDir(), "inventory.db")

	cache, err := NewCached(inner, path, time.Hour)
	require.NoError(t, err)
	_, err = cache.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	// the reopened cache must answer from disk
	reopened, err := NewCached(inner, path, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	dc, err := reopened.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "dc1", dc)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedExpiry(t *testing.T) {
	inner := &countingInventory{dcs: map[string]string{"10.0.0.1": "dc1"}}
	cache, _ := newTestCache(t, inner, time.Hour)

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	// within the TTL the record is served from cache
	current = current.Add(30 * time.Minute)
	_, err = cache.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	// past the TTL the host is resolved again
	current = current.Add(31 * time.Minute)
	_, err = cache.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedZeroTTLNeverExpires(t *testing.T) {
	inner := &countingInventory{dcs: map[string]string{"10.0.0.1": "dc1"}}
	cache, _ := newTestCache(t, inner, 0)

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	current = current.Add(1000 * time.Hour)
	_, err = cache.DC(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}
