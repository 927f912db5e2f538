package balancer

import (
	"context"
	"fmt"

	"github.com/cuemby/mastermind/pkg/namespace"
	"github.com/cuemby/mastermind/pkg/topology"
	"github.com/cuemby/mastermind/pkg/worker"
)

// Register wires every coordinator handler into the registry under
// its stable public name.
func (b *Balancer) Register(reg *worker.Registry) {
	reg.Register("get_groups", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.Groups(), nil
	})
	reg.Register("get_symmetric_groups", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.SymmetricGroups(), nil
	})
	reg.Register("get_bad_groups", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.BadGroups(), nil
	})
	reg.Register("get_frozen_groups", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.FrozenGroups(), nil
	})
	reg.Register("get_closed_groups", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.ClosedGroups(), nil
	})
	reg.Register("get_empty_groups", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.EmptyGroups(), nil
	})
	reg.Register("get_group_info", func(_ context.Context, req interface{}) (interface{}, error) {
		groupID, err := intArg(args(req), 0, "group id")
		if err != nil {
			return nil, err
		}
		return b.GroupInfo(groupID)
	})
	reg.Register("get_group_history", func(_ context.Context, req interface{}) (interface{}, error) {
		groupID, err := intArg(args(req), 0, "group id")
		if err != nil {
			return nil, err
		}
		return b.GroupHistory(groupID)
	})
	reg.Register("get_group_weights", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.GroupWeights(), nil
	})
	reg.Register("get_couple_info", func(_ context.Context, req interface{}) (interface{}, error) {
		groupID, err := intArg(args(req), 0, "group id")
		if err != nil {
			return nil, err
		}
		return b.CoupleInfo(groupID)
	})
	reg.Register("groups_by_dc", func(ctx context.Context, req interface{}) (interface{}, error) {
		list := args(req)
		var ids []int
		if len(list) > 0 {
			var err error
			ids, err = intsArg(list[0], "group ids")
			if err != nil {
				return nil, err
			}
		}
		return b.GroupsByDC(ctx, ids)
	})
	reg.Register("couples_by_namespace", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.CouplesByNamespace(), nil
	})
	reg.Register("couple_groups", func(ctx context.Context, req interface{}) (interface{}, error) {
		list := args(req)
		size, err := intArg(list, 0, "couple size")
		if err != nil {
			return nil, err
		}
		var mandatory []int
		if len(list) > 1 && list[1] != nil {
			mandatory, err = intsArg(list[1], "mandatory groups")
			if err != nil {
				return nil, err
			}
		}
		ns := ""
		if len(list) > 2 {
			ns, err = stringArg(list, 2, "namespace")
			if err != nil {
				return nil, err
			}
		}
		return b.CoupleGroups(ctx, size, mandatory, ns)
	})
	reg.Register("break_couple", func(ctx context.Context, req interface{}) (interface{}, error) {
		list := args(req)
		if len(list) < 2 {
			return nil, fmt.Errorf("break_couple takes couple ids and a confirmation string")
		}
		ids, err := intsArg(list[0], "couple ids")
		if err != nil {
			return nil, err
		}
		confirmation, err := stringArg(list, 1, "confirmation")
		if err != nil {
			return nil, err
		}
		force := false
		if len(list) > 2 {
			force, err = boolArg(list, 2, "force")
			if err != nil {
				return nil, err
			}
		}
		if err := b.BreakCouple(ctx, ids, confirmation, force); err != nil {
			return nil, err
		}
		return true, nil
	})
	reg.Register("repair_groups", func(ctx context.Context, req interface{}) (interface{}, error) {
		list := args(req)
		groupID, err := intArg(list, 0, "group id")
		if err != nil {
			return nil, err
		}
		forceNS := ""
		if len(list) > 1 {
			forceNS, err = stringArg(list, 1, "force namespace")
			if err != nil {
				return nil, err
			}
		}
		return b.RepairGroups(ctx, groupID, forceNS)
	})
	reg.Register("freeze_couple", func(ctx context.Context, req interface{}) (interface{}, error) {
		coupleID, err := coupleArg(args(req), 0)
		if err != nil {
			return nil, err
		}
		if err := b.FreezeCouple(ctx, coupleID); err != nil {
			return nil, err
		}
		return true, nil
	})
	reg.Register("unfreeze_couple", func(ctx context.Context, req interface{}) (interface{}, error) {
		coupleID, err := coupleArg(args(req), 0)
		if err != nil {
			return nil, err
		}
		if err := b.UnfreezeCouple(ctx, coupleID); err != nil {
			return nil, err
		}
		return true, nil
	})
	reg.Register("get_namespaces", func(ctx context.Context, _ interface{}) (interface{}, error) {
		return b.Namespaces(ctx)
	})
	reg.Register("get_namespace_settings", func(ctx context.Context, req interface{}) (interface{}, error) {
		ns, err := stringArg(args(req), 0, "namespace")
		if err != nil {
			return nil, err
		}
		return b.NamespaceSettings(ctx, ns)
	})
	reg.Register("get_namespaces_settings", func(ctx context.Context, _ interface{}) (interface{}, error) {
		return b.AllNamespaceSettings(ctx)
	})
	reg.Register("namespace_setup", func(ctx context.Context, req interface{}) (interface{}, error) {
		list := args(req)
		ns, err := stringArg(list, 0, "namespace")
		if err != nil {
			return nil, err
		}
		if len(list) < 2 {
			return nil, fmt.Errorf("namespace_setup takes a namespace and a settings map")
		}
		settings, err := settingsArg(list[1])
		if err != nil {
			return nil, err
		}
		if err := b.NamespaceSetup(ctx, ns, settings); err != nil {
			return nil, err
		}
		return true, nil
	})
	reg.Register("get_next_group_number", func(ctx context.Context, req interface{}) (interface{}, error) {
		n, err := intArg(args(req), 0, "groups count")
		if err != nil {
			return nil, err
		}
		return b.NextGroupNumber(ctx, n)
	})
	reg.Register("group_detach_node", func(ctx context.Context, req interface{}) (interface{}, error) {
		list := args(req)
		groupID, err := intArg(list, 0, "group id")
		if err != nil {
			return nil, err
		}
		addr, err := stringArg(list, 1, "node address")
		if err != nil {
			return nil, err
		}
		if err := b.DetachNode(ctx, groupID, addr); err != nil {
			return nil, err
		}
		return true, nil
	})
	reg.Register("force_nodes_update", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.ForceNodesUpdate(), nil
	})
	reg.Register("get_config", func(_ context.Context, _ interface{}) (interface{}, error) {
		return b.ConfigInfo(), nil
	})
}

// args normalises a decoded request into a positional argument list.
// A scalar request stands for a single argument.
func args(req interface{}) []interface{} {
	switch v := req.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

func intArg(list []interface{}, i int, name string) (int, error) {
	if i >= len(list) {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, ok := toInt(list[i])
	if !ok {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func stringArg(list []interface{}, i int, name string) (string, error) {
	if i >= len(list) {
		return "", fmt.Errorf("missing %s", name)
	}
	switch s := list[i].(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("%s must be a string", name)
}

func boolArg(list []interface{}, i int, name string) (bool, error) {
	if i >= len(list) {
		return false, fmt.Errorf("missing %s", name)
	}
	v, ok := list[i].(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return v, nil
}

func intsArg(v interface{}, name string) ([]int, error) {
	list, ok := v.([]interface{})
	if !ok {
		if n, ok := toInt(v); ok {
			return []int{n}, nil
		}
		return nil, fmt.Errorf("%s must be a list of integers", name)
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		n, ok := toInt(item)
		if !ok {
			return nil, fmt.Errorf("%s must be a list of integers", name)
		}
		out = append(out, n)
	}
	return out, nil
}

// coupleArg accepts a couple either as its "1:2:3" key or as a list
// of member ids, normalising to the canonical sorted key.
func coupleArg(list []interface{}, i int) (string, error) {
	if i >= len(list) {
		return "", fmt.Errorf("missing couple")
	}
	switch v := list[i].(type) {
	case string:
		ids, err := topology.ParseCoupleKey(v)
		if err != nil {
			return "", fmt.Errorf("malformed couple %q", v)
		}
		return topology.CoupleKey(ids), nil
	case []byte:
		ids, err := topology.ParseCoupleKey(string(v))
		if err != nil {
			return "", fmt.Errorf("malformed couple %q", v)
		}
		return topology.CoupleKey(ids), nil
	default:
		ids, err := intsArg(v, "couple ids")
		if err != nil {
			return "", err
		}
		return topology.CoupleKey(ids), nil
	}
}

// settingsArg decodes a namespace settings map.
func settingsArg(v interface{}) (namespace.Settings, error) {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return namespace.Settings{}, fmt.Errorf("settings must be a map")
	}

	var settings namespace.Settings
	if count, ok := raw["groups-count"]; ok {
		n, ok := toInt(count)
		if !ok {
			return namespace.Settings{}, fmt.Errorf("groups-count must be an integer")
		}
		settings.GroupsCount = n
	}
	if copies, ok := raw["success-copies-num"]; ok {
		s, ok := toString(copies)
		if !ok {
			return namespace.Settings{}, fmt.Errorf("success-copies-num must be a string")
		}
		settings.SuccessCopiesNum = s
	}
	if static, ok := raw["static-couple"]; ok && static != nil {
		ids, err := intsArg(static, "static-couple")
		if err != nil {
			return namespace.Settings{}, err
		}
		settings.StaticCouple = ids
	}
	return settings, nil
}

// toInt widens any numeric type the msgpack decoder may produce.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case float32:
		if n == float32(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
