package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/mastermind/pkg/topology"
	"github.com/cuemby/mastermind/pkg/transport"
)

// call sends one coordinator request to the agent named by the --agent
// flag and returns the decoded response.
func call(cmd *cobra.Command, name string, args interface{}) (interface{}, error) {
	addr, _ := cmd.Flags().GetString("agent")

	c, err := transport.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent: %v", err)
	}
	defer c.Close()

	var out interface{}
	if err := c.Call(context.Background(), name, args, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// show runs one request and prints the response as indented JSON.
func show(cmd *cobra.Command, name string, args interface{}) error {
	out, err := call(cmd, name, args)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render response: %v", err)
	}
	fmt.Println(string(data))
	return nil
}

// parseGroup parses a group id argument.
func parseGroup(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid group id %q", arg)
	}
	return id, nil
}

// parseCouple parses a couple argument given either as a "1:2:3" key
// or as a single group id.
func parseCouple(arg string) ([]int, error) {
	ids, err := topology.ParseCoupleKey(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid couple %q", arg)
	}
	return ids, nil
}
