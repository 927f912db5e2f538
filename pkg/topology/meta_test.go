package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v4"
)

func TestParseGroupMetaV1(t *testing.T) {
	blob, err := msgpack.Marshal([]int{3, 1, 2})
	require.NoError(t, err)

	meta, err := ParseGroupMeta(blob)
	require.NoError(t, err)

	assert.Equal(t, 1, meta.Version)
	assert.Equal(t, []int{3, 1, 2}, meta.Couple)
	assert.Equal(t, DefaultNamespace, meta.Namespace)
	assert.False(t, meta.Frozen)
}

func TestParseGroupMetaV2(t *testing.T) {
	blob, err := msgpack.Marshal(map[string]interface{}{
		"version":   2,
		"couple":    []int{1, 2, 300},
		"namespace": "web",
		"frozen":    true,
	})
	require.NoError(t, err)

	meta, err := ParseGroupMeta(blob)
	require.NoError(t, err)

	assert.Equal(t, 2, meta.Version)
	assert.Equal(t, []int{1, 2, 300}, meta.Couple)
	assert.Equal(t, "web", meta.Namespace)
	assert.True(t, meta.Frozen)
}

func TestParseGroupMetaV2WithoutNamespace(t *testing.T) {
	blob, err := msgpack.Marshal(map[string]interface{}{
		"version": 2,
		"couple":  []int{1, 2},
	})
	require.NoError(t, err)

	meta, err := ParseGroupMeta(blob)
	require.NoError(t, err)
	assert.Equal(t, "", meta.Namespace)
}

func TestParseGroupMetaRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		blob func(t *testing.T) []byte
	}{
		{
			name: "not msgpack",
			blob: func(t *testing.T) []byte { return []byte("\xc1\xc1\xc1") },
		},
		{
			name: "scalar payload",
			blob: func(t *testing.T) []byte {
				blob, err := msgpack.Marshal(42)
				require.NoError(t, err)
				return blob
			},
		},
		{
			name: "unsupported version",
			blob: func(t *testing.T) []byte {
				blob, err := msgpack.Marshal(map[string]interface{}{"version": 3, "couple": []int{1}})
				require.NoError(t, err)
				return blob
			},
		},
		{
			name: "missing couple",
			blob: func(t *testing.T) []byte {
				blob, err := msgpack.Marshal(map[string]interface{}{"version": 2, "namespace": "web"})
				require.NoError(t, err)
				return blob
			},
		},
		{
			name: "non integer couple",
			blob: func(t *testing.T) []byte {
				blob, err := msgpack.Marshal(map[string]interface{}{"version": 2, "couple": []string{"x"}})
				require.NoError(t, err)
				return blob
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGroupMeta(tt.blob(t))
			assert.Error(t, err)
		})
	}
}

func TestPackGroupMetaRoundTrip(t *testing.T) {
	meta := &GroupMeta{Version: 2, Couple: []int{1, 2, 3}, Namespace: "web"}

	blob, err := PackGroupMeta(meta)
	require.NoError(t, err)

	parsed, err := ParseGroupMeta(blob)
	require.NoError(t, err)
	assert.Equal(t, meta.Couple, parsed.Couple)
	assert.Equal(t, meta.Namespace, parsed.Namespace)

	// packing the parsed meta again is byte-stable
	again, err := PackGroupMeta(parsed)
	require.NoError(t, err)
	assert.Equal(t, blob, again)
}

func TestGroupMetaEqual(t *testing.T) {
	a := &GroupMeta{Version: 2, Couple: []int{1, 2}, Namespace: "web"}

	assert.True(t, a.Equal(&GroupMeta{Version: 2, Couple: []int{1, 2}, Namespace: "web"}))
	assert.False(t, a.Equal(&GroupMeta{Version: 2, Couple: []int{2, 1}, Namespace: "web"}))
	assert.False(t, a.Equal(&GroupMeta{Version: 2, Couple: []int{1, 2}, Namespace: "photos"}))
	assert.False(t, a.Equal(nil))

	var nilMeta *GroupMeta
	assert.True(t, nilMeta.Equal(nil))
}

func TestCoupleMetaRoundTrip(t *testing.T) {
	blob, err := PackCoupleMeta(&CoupleMeta{Frozen: true})
	require.NoError(t, err)

	meta, err := ParseCoupleMeta(blob)
	require.NoError(t, err)
	assert.True(t, meta.Frozen)

	_, err = ParseCoupleMeta([]byte("\xc1"))
	assert.Error(t, err)
}
