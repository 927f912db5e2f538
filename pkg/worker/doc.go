/*
Package worker dispatches named coordinator requests to their handlers.

Every operator-facing operation is a named handler taking one
MessagePack-decoded argument and returning one MessagePack-encodable
value. The registry is the boundary where handler failures stop being
errors: a failed handler still yields a well-formed response carrying
the error envelope, so the transport never surfaces handler problems
as transport problems.

# Architecture

	          raw payload ("get_group_info", msgpack bytes)
	                            │
	                            ▼
	                  ┌──────────────────┐
	                  │ Registry.Dispatch │
	                  └────────┬─────────┘
	                           │ decode
	                           ▼
	                  ┌──────────────────┐
	                  │   HandlerFunc    │
	                  └────────┬─────────┘
	                 ok        │        error / panic / unknown name
	            ┌──────────────┴─────────────────┐
	            ▼                                ▼
	     msgpack(result)            msgpack({"Balancer error": msg})

# Error Envelope

The envelope key is stable wire format:

	{"Balancer error": "group 7 is coupled"}

Clients test for the key to distinguish a refused operation from a
result that happens to be a map. Unknown handler names and unparseable
payloads produce the same envelope, keeping the caller's decode path
uniform.

# Usage

	reg := worker.NewRegistry()
	reg.Register("get_groups", func(ctx context.Context, req interface{}) (interface{}, error) {
	    return balancer.Groups(), nil
	})

	blob, err := reg.Dispatch(ctx, "get_groups", payload)

# Integration Points

  - pkg/balancer: registers every coordinator handler
  - pkg/transport: feeds request payloads in, response payloads out
  - pkg/metrics: per-handler request counters and latency histograms
*/
package worker
