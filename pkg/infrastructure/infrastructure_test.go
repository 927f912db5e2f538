package infrastructure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestRecordNodesFirstSnapshot(t *testing.T) {
	s, _ := newStore(t)

	recorded, err := s.RecordNodes(42, []string{"10.0.0.2:1025", "10.0.0.1:1025"})
	require.NoError(t, err)
	assert.True(t, recorded)

	records, err := s.History(42)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 42, rec.GroupID)
	assert.Equal(t, []string{"10.0.0.1:1025", "10.0.0.2:1025"}, rec.Nodes)
	assert.Equal(t, KindAuto, rec.Kind)
	assert.NotZero(t, rec.TS)
}

func TestRecordNodesIgnoresUnchangedSet(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.RecordNodes(42, []string{"a:1025", "b:1025"})
	require.NoError(t, err)

	// Same set, different discovery order.
	recorded, err := s.RecordNodes(42, []string{"b:1025", "a:1025"})
	require.NoError(t, err)
	assert.False(t, recorded)

	records, err := s.History(42)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordNodesAppendsOnChange(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.RecordNodes(42, []string{"a:1025"})
	require.NoError(t, err)

	recorded, err := s.RecordNodes(42, []string{"a:1025", "c:1025"})
	require.NoError(t, err)
	assert.True(t, recorded)

	records, err := s.History(42)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"a:1025"}, records[0].Nodes)
	assert.Equal(t, []string{"a:1025", "c:1025"}, records[1].Nodes)
}

func TestRecordDetach(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.RecordNodes(7, []string{"a:1025", "b:1025"})
	require.NoError(t, err)

	err = s.RecordDetach(7, []string{"b:1025"}, "a:1025")
	require.NoError(t, err)

	records, err := s.History(7)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[1]
	assert.Equal(t, KindDetach, rec.Kind)
	assert.Equal(t, []string{"b:1025"}, rec.Nodes)
	assert.Equal(t, "detached node a:1025", rec.Reason)
}

func TestHistoriesAreIndependent(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.RecordNodes(1, []string{"a:1025"})
	require.NoError(t, err)
	_, err = s.RecordNodes(2, []string{"b:1025"})
	require.NoError(t, err)
	_, err = s.RecordNodes(1, []string{"a:1025", "c:1025"})
	require.NoError(t, err)

	first, err := s.History(1)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.History(2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, []string{"b:1025"}, second[0].Nodes)
}

func TestHistoryOfUnknownGroupIsEmpty(t *testing.T) {
	s, _ := newStore(t)

	records, err := s.History(999)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistorySurvivesReopen(t *testing.T) {
	s, path := newStore(t)

	_, err := s.RecordNodes(42, []string{"a:1025"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.History(42)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Deduplication works against the persisted snapshot too.
	recorded, err := reopened.RecordNodes(42, []string{"a:1025"})
	require.NoError(t, err)
	assert.False(t, recorded)
}
