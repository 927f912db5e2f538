package balancer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/cuemby/mastermind/pkg/worker"
)

func registryFor(t *testing.T, e *env) *worker.Registry {
	t.Helper()
	reg := worker.NewRegistry()
	e.bal.Register(reg)
	return reg
}

// dispatch round-trips one handler call through the wire encoding.
func dispatch(t *testing.T, reg *worker.Registry, name string, args interface{}) interface{} {
	t.Helper()

	var payload []byte
	if args != nil {
		var err error
		payload, err = msgpack.Marshal(args)
		require.NoError(t, err)
	}
	resp, err := reg.Dispatch(context.Background(), name, payload)
	require.NoError(t, err)

	var out interface{}
	require.NoError(t, msgpack.Unmarshal(resp, &out))
	return out
}

func envelopeError(t *testing.T, out interface{}) string {
	t.Helper()
	envelope, ok := out.(map[string]interface{})
	require.True(t, ok, "expected an error envelope, got %T", out)
	msg, ok := envelope[worker.ErrorKey].(string)
	require.True(t, ok, "envelope is missing the error key: %v", envelope)
	return msg
}

func TestRegisterNames(t *testing.T) {
	e := newEnv(t, nil)
	reg := registryFor(t, e)

	names := reg.Names()
	for _, want := range []string{
		"get_groups",
		"get_symmetric_groups",
		"get_bad_groups",
		"get_frozen_groups",
		"get_closed_groups",
		"get_empty_groups",
		"get_group_info",
		"get_group_history",
		"get_group_weights",
		"get_couple_info",
		"groups_by_dc",
		"couples_by_namespace",
		"couple_groups",
		"break_couple",
		"repair_groups",
		"freeze_couple",
		"unfreeze_couple",
		"get_namespaces",
		"get_namespace_settings",
		"get_namespaces_settings",
		"namespace_setup",
		"get_next_group_number",
		"group_detach_node",
		"force_nodes_update",
		"get_config",
	} {
		assert.Contains(t, names, want)
	}
	assert.Len(t, names, 25)
}

func TestDispatchGroupInfo(t *testing.T) {
	e := coupleEnv(t)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "get_group_info", []interface{}{1})
	info, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, info["id"])
	assert.Equal(t, "COUPLED", info["status"])
	assert.Equal(t, "1:2:3", info["couple"])
	assert.Equal(t, "web", info["namespace"])

	out = dispatch(t, reg, "get_group_info", nil)
	assert.Equal(t, "missing group id", envelopeError(t, out))
}

func TestDispatchBreakCouple(t *testing.T) {
	e := coupleEnv(t)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "break_couple", []interface{}{[]int{1, 2, 3}, "Yes I want to break good couple 1:2:3"})
	assert.Equal(t, "Incorrect confirmation string", envelopeError(t, out))

	out = dispatch(t, reg, "break_couple", []interface{}{[]int{1, 2, 3}, "Yes, I want to break good couple 1:2:3"})
	assert.Equal(t, true, out)

	_, ok := e.state.Couple("1:2:3")
	assert.False(t, ok)
}

func TestDispatchScalarArg(t *testing.T) {
	e := newEnv(t, nil)
	reg := registryFor(t, e)

	// A bare integer stands for a single-argument list.
	out := dispatch(t, reg, "get_next_group_number", 5)
	list, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 5)
	assert.EqualValues(t, 1, list[0])
	assert.EqualValues(t, 5, list[4])
}

func TestDispatchCoupleArgForms(t *testing.T) {
	e := coupleEnv(t)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "freeze_couple", []interface{}{"1:2:3"})
	assert.Equal(t, true, out)

	// Member ids in any order name the same couple.
	out = dispatch(t, reg, "unfreeze_couple", []interface{}{[]int{3, 1, 2}})
	assert.Equal(t, true, out)

	out = dispatch(t, reg, "freeze_couple", []interface{}{"1:x"})
	assert.Equal(t, `malformed couple "1:x"`, envelopeError(t, out))
}

func TestDispatchFreezeTwice(t *testing.T) {
	e := coupleEnv(t)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "freeze_couple", []interface{}{"1:2:3"})
	assert.Equal(t, true, out)

	out = dispatch(t, reg, "freeze_couple", []interface{}{"1:2:3"})
	assert.Equal(t, "Couple 1:2:3 is already frozen", envelopeError(t, out))
}

func TestDispatchCoupleGroups(t *testing.T) {
	e := dcEnv(t)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "couple_groups", []interface{}{3, nil, "web"})
	list, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 3)
	assert.EqualValues(t, 10, list[0])
	assert.EqualValues(t, 12, list[1])
	assert.EqualValues(t, 13, list[2])
}

func TestDispatchNamespaceSetup(t *testing.T) {
	e := newEnv(t, nil)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "namespace_setup", []interface{}{"web", map[string]interface{}{
		"groups-count":       3,
		"success-copies-num": "any",
	}})
	assert.Equal(t, true, out)

	out = dispatch(t, reg, "get_namespaces", nil)
	assert.Equal(t, []interface{}{"web"}, out)

	out = dispatch(t, reg, "get_namespace_settings", []interface{}{"web"})
	settings, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, settings["groups-count"])
	assert.Equal(t, "any", settings["success-copies-num"])

	out = dispatch(t, reg, "namespace_setup", []interface{}{"web", map[string]interface{}{
		"groups-count":       0,
		"success-copies-num": "any",
	}})
	assert.Equal(t, "groups-count must be a positive integer", envelopeError(t, out))
}

func TestDispatchDetachAndHistory(t *testing.T) {
	e := coupleEnv(t)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "group_detach_node", []interface{}{2, "10.0.0.2:1025"})
	assert.Equal(t, true, out)

	out = dispatch(t, reg, "get_group_history", []interface{}{2})
	records, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, records, 1)
	record, ok := records[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "detach", record["kind"])
	assert.Equal(t, "detached node 10.0.0.2:1025", record["reason"])
}

func TestDispatchForceNodesUpdate(t *testing.T) {
	e := newEnv(t, nil)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "force_nodes_update", nil)
	assert.Equal(t, false, out)

	e.bal.updater = &stubUpdater{}
	out = dispatch(t, reg, "force_nodes_update", nil)
	assert.Equal(t, true, out)
}

func TestDispatchGetConfig(t *testing.T) {
	e := newEnv(t, nil)
	reg := registryFor(t, e)

	out := dispatch(t, reg, "get_config", nil)
	info, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, info, "elliptics")
	assert.Contains(t, info, "balancer")

	meta, ok := info["metadata"].(map[string]interface{})
	require.True(t, ok)
	groups, ok := meta["groups"].([]interface{})
	require.True(t, ok)
	require.Len(t, groups, 1)
	assert.EqualValues(t, metaGroup, groups[0])
}

func TestDispatchListings(t *testing.T) {
	e := coupleEnv(t)
	e.ingest(statRow("10.0.0.7:1025", 7))
	reg := registryFor(t, e)

	out := dispatch(t, reg, "get_groups", nil)
	list, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 4)
	assert.EqualValues(t, 1, list[0])
	assert.EqualValues(t, 7, list[3])

	out = dispatch(t, reg, "get_symmetric_groups", nil)
	couples, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, couples, 1)
	members, ok := couples[0].([]interface{})
	require.True(t, ok)
	require.Len(t, members, 3)
	assert.EqualValues(t, 1, members[0])

	out = dispatch(t, reg, "get_empty_groups", nil)
	empty, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, empty, 1)
	assert.EqualValues(t, 7, empty[0])
}
