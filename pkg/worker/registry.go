package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/cuemby/mastermind/pkg/log"
	"github.com/cuemby/mastermind/pkg/metrics"
)

// ErrorKey is the map key carrying a handler failure back to the
// caller. A failed handler still produces a successful transport
// response; the error travels inside this envelope.
const ErrorKey = "Balancer error"

// HandlerFunc processes one decoded request. The request is whatever
// the caller packed: a positional argument list, a single scalar, or
// nothing at all.
type HandlerFunc func(ctx context.Context, req interface{}) (interface{}, error)

// Registry maps stable handler names to their implementations and
// dispatches raw MessagePack request payloads to them.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		logger:   log.WithComponent("worker"),
	}
}

// Register installs a handler under its public name, replacing any
// previous registration.
func (r *Registry) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Names returns the registered handler names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler looks up one handler by name.
func (r *Registry) Handler(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Dispatch decodes the payload, invokes the named handler and encodes
// its result. Handler failures of any kind, including an unknown name
// or a malformed payload, are folded into the error envelope and
// returned as a regular response; the transport only sees an error
// when the result itself cannot be encoded.
func (r *Registry) Dispatch(ctx context.Context, name string, payload []byte) ([]byte, error) {
	started := time.Now()
	result, failure := r.invoke(ctx, name, payload)

	status := "ok"
	if failure != "" {
		status = "error"
		result = map[string]string{ErrorKey: failure}
		r.logger.Warn().Str("handler", name).Str("error", failure).Msg("Handler failed")
	}
	metrics.HandlerRequestsTotal.WithLabelValues(name, status).Inc()
	metrics.HandlerDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())

	blob, err := msgpack.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response of handler %s: %w", name, err)
	}
	return blob, nil
}

// invoke runs the handler, converting every failure mode into an
// envelope message. A panicking handler is recovered so one bad
// request cannot take the process down.
func (r *Registry) invoke(ctx context.Context, name string, payload []byte) (result interface{}, failure string) {
	defer func() {
		if p := recover(); p != nil {
			result, failure = nil, fmt.Sprintf("handler %s panicked: %v", name, p)
		}
	}()

	fn, ok := r.Handler(name)
	if !ok {
		return nil, fmt.Sprintf("unknown handler %q", name)
	}

	var req interface{}
	if len(payload) > 0 {
		if err := msgpack.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Sprintf("malformed request: %v", err)
		}
	}

	resp, err := fn(ctx, req)
	if err != nil {
		return nil, err.Error()
	}
	return resp, ""
}
