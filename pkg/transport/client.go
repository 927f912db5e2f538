package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/mastermind/pkg/worker"
)

// defaultCallTimeout bounds calls whose context carries no deadline.
const defaultCallTimeout = 10 * time.Second

// Client talks to a coordinator over gRPC. Requests and responses are
// MessagePack payloads moved through the raw codec.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewClient connects to the coordinator at addr. Extra dial options
// are appended to the defaults, which force the raw codec and plain
// transport.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: defaultCallTimeout}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Call invokes one named handler. args is encoded as the request
// payload (nil means no arguments) and the response is decoded into
// out unless out is nil. A handler failure travels back inside the
// error envelope and is returned as a plain error carrying the
// handler's message.
func (c *Client) Call(ctx context.Context, name string, args interface{}, out interface{}) error {
	var payload []byte
	if args != nil {
		var err error
		payload, err = msgpack.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var frame []byte
	method := fmt.Sprintf("/%s/%s", ServiceName, name)
	if err := c.conn.Invoke(ctx, method, &payload, &frame); err != nil {
		return err
	}

	if msg, ok := errorEnvelope(frame); ok {
		return fmt.Errorf("%s", msg)
	}
	if out == nil {
		return nil
	}
	if err := msgpack.Unmarshal(frame, out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", name, err)
	}
	return nil
}

// errorEnvelope detects a handler failure response: a single-key map
// carrying the error message. Regular responses never use the error
// key, so a one-key map with it is unambiguous.
func errorEnvelope(frame []byte) (string, bool) {
	var raw map[string]interface{}
	if err := msgpack.Unmarshal(frame, &raw); err != nil {
		return "", false
	}
	if len(raw) != 1 {
		return "", false
	}
	msg, ok := raw[worker.ErrorKey].(string)
	return msg, ok
}
