package topology

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v4"
)

// DefaultNamespace is assumed for legacy v1 group metadata that
// predates namespaces.
const DefaultNamespace = "default"

// GroupMeta is the parsed symmetric-groups blob of a group. Two
// on-disk encodings are accepted: the legacy v1 bare list of couple
// member ids and the v2 map with an explicit namespace. Both
// normalise into this struct. A parsed meta is never mutated.
type GroupMeta struct {
	Version   int
	Couple    []int
	Namespace string
	Frozen    bool
}

// Equal reports whether two metas carry the same content. Couple
// order matters, matching the on-disk representation.
func (m *GroupMeta) Equal(other *GroupMeta) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Version != other.Version || m.Namespace != other.Namespace || m.Frozen != other.Frozen {
		return false
	}
	if len(m.Couple) != len(other.Couple) {
		return false
	}
	for i, id := range m.Couple {
		if other.Couple[i] != id {
			return false
		}
	}
	return true
}

// groupMetaV2 fixes the field order of freshly written blobs so that
// identical metadata always packs to identical bytes.
type groupMetaV2 struct {
	Version   int    `msgpack:"version"`
	Couple    []int  `msgpack:"couple"`
	Namespace string `msgpack:"namespace"`
}

// ParseGroupMeta decodes a symmetric-groups blob in either encoding.
func ParseGroupMeta(blob []byte) (*GroupMeta, error) {
	var raw interface{}
	if err := msgpack.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse group meta: %v", err)
	}

	switch v := raw.(type) {
	case []interface{}:
		couple, err := intSlice(v)
		if err != nil {
			return nil, fmt.Errorf("unable to parse group meta: %v", err)
		}
		return &GroupMeta{Version: 1, Couple: couple, Namespace: DefaultNamespace}, nil

	case map[string]interface{}:
		version, err := asInt(v["version"])
		if err != nil || version != 2 {
			return nil, fmt.Errorf("unable to parse group meta: unsupported version")
		}
		rawCouple, ok := v["couple"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("unable to parse group meta: missing couple")
		}
		couple, err := intSlice(rawCouple)
		if err != nil {
			return nil, fmt.Errorf("unable to parse group meta: %v", err)
		}
		meta := &GroupMeta{Version: 2, Couple: couple}
		if ns, ok := v["namespace"]; ok {
			meta.Namespace = asString(ns)
		}
		if frozen, ok := v["frozen"].(bool); ok {
			meta.Frozen = frozen
		}
		return meta, nil
	}

	return nil, fmt.Errorf("unable to parse group meta")
}

// PackGroupMeta encodes meta in the v2 on-disk format. Packing is
// deterministic: equal metas yield byte-equal blobs.
func PackGroupMeta(meta *GroupMeta) ([]byte, error) {
	blob, err := msgpack.Marshal(groupMetaV2{
		Version:   2,
		Couple:    meta.Couple,
		Namespace: meta.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode group meta: %v", err)
	}
	return blob, nil
}

// CoupleMeta is the payload of the per-couple metakey, stored
// separately from per-group couple membership.
type CoupleMeta struct {
	Frozen bool `msgpack:"frozen"`
}

// ParseCoupleMeta decodes a couple metakey blob.
func ParseCoupleMeta(blob []byte) (*CoupleMeta, error) {
	var meta CoupleMeta
	if err := msgpack.Unmarshal(blob, &meta); err != nil {
		return nil, fmt.Errorf("unable to parse couple meta: %v", err)
	}
	return &meta, nil
}

// PackCoupleMeta encodes a couple metakey blob.
func PackCoupleMeta(meta *CoupleMeta) ([]byte, error) {
	blob, err := msgpack.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode couple meta: %v", err)
	}
	return blob, nil
}

// asInt widens any integer the msgpack decoder may produce.
func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	}
	return 0, fmt.Errorf("value %v is not an integer", v)
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func intSlice(values []interface{}) ([]int, error) {
	out := make([]int, 0, len(values))
	for _, v := range values {
		n, err := asInt(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
