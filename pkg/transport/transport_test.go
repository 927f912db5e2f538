package transport

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cuemby/mastermind/pkg/worker"
)

func testRegistry() *worker.Registry {
	reg := worker.NewRegistry()
	reg.Register("echo", func(_ context.Context, req interface{}) (interface{}, error) {
		return req, nil
	})
	reg.Register("fail", func(_ context.Context, _ interface{}) (interface{}, error) {
		return nil, fmt.Errorf("group 7 is coupled")
	})
	reg.Register("shape", func(_ context.Context, _ interface{}) (interface{}, error) {
		return map[string]interface{}{
			"couple": "1:2:3",
			"frozen": false,
		}, nil
	})
	return reg
}

// startServer serves the registry over an in-memory connection and
// returns a connected client.
func startServer(t *testing.T, reg *worker.Registry) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(reg)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCallRoundTrip(t *testing.T) {
	client := startServer(t, testRegistry())

	var out []interface{}
	err := client.Call(context.Background(), "echo", []interface{}{"hello", 7}, &out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "hello", out[0])
	assert.EqualValues(t, 7, out[1])
}

func TestCallErrorEnvelope(t *testing.T) {
	client := startServer(t, testRegistry())

	err := client.Call(context.Background(), "fail", nil, nil)
	require.EqualError(t, err, "group 7 is coupled")
}

func TestCallUnknownMethod(t *testing.T) {
	client := startServer(t, testRegistry())

	err := client.Call(context.Background(), "nope", nil, nil)
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestCallNilArgsAndNilOut(t *testing.T) {
	client := startServer(t, testRegistry())

	require.NoError(t, client.Call(context.Background(), "echo", nil, nil))
}

func TestCallDecodesStruct(t *testing.T) {
	client := startServer(t, testRegistry())

	var out struct {
		Couple string `msgpack:"couple"`
		Frozen bool   `msgpack:"frozen"`
	}
	require.NoError(t, client.Call(context.Background(), "shape", nil, &out))
	assert.Equal(t, "1:2:3", out.Couple)
	assert.False(t, out.Frozen)
}

func TestRawCodec(t *testing.T) {
	codec := rawCodec{}

	frame := []byte{0x93, 0x01, 0x02, 0x03}
	blob, err := codec.Marshal(&frame)
	require.NoError(t, err)
	assert.Equal(t, frame, blob)

	var decoded []byte
	require.NoError(t, codec.Unmarshal(blob, &decoded))
	assert.Equal(t, frame, decoded)

	// The decoded frame must survive reuse of the input buffer.
	blob[0] = 0xff
	assert.EqualValues(t, 0x93, decoded[0])

	_, err = codec.Marshal("not a frame")
	require.Error(t, err)
	require.Error(t, codec.Unmarshal(blob, "not a frame"))
}
