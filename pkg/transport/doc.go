/*
Package transport carries coordinator requests over gRPC.

The wire payloads are MessagePack, not protobuf: gRPC contributes
framing, multiplexing and deadlines, while a passthrough codec moves
the raw bytes between the connection and the worker registry. One
unary method exists per registered handler, all under the
mastermind.v1.Mastermind service, so a stable handler name doubles as
a stable method name.

# Architecture

	       Client.Call("couple_groups", args)
	                     │ msgpack encode
	                     ▼
	       /mastermind.v1.Mastermind/couple_groups
	                     │ raw codec (bytes through)
	                     ▼
	              ┌─────────────┐
	              │   Server    │ logging interceptor
	              └──────┬──────┘
	                     ▼
	            worker.Registry.Dispatch

The service descriptor is derived from the registry when NewServer
runs; handlers registered afterwards are not reachable. Handler
failures never become gRPC errors: they ride back inside the error
envelope and Client.Call unwraps them into plain errors, so a caller
cannot tell a refused operation from a local one.

# Usage

	srv := transport.NewServer(registry)
	go srv.Start(cfg.GRPCAddr)
	defer srv.Stop()

	client, err := transport.NewClient(addr)
	var ids []int
	err = client.Call(ctx, "get_next_group_number", 5, &ids)

# Integration Points

  - pkg/worker: the registry behind every method
  - pkg/balancer: registers the coordinator handlers served here
  - cmd/mastermind: runs the server in the agent, the client in the
    operator commands
*/
package transport
