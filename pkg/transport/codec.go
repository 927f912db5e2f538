package transport

import (
	"fmt"
)

// codecName identifies the passthrough codec.
const codecName = "mastermind-raw"

// rawCodec moves request and response frames through gRPC untouched.
// The payload encoding is MessagePack, applied by the worker registry
// on the server side and by Client.Call on the client side; gRPC only
// provides framing and transport. Both ends force this codec, so the
// negotiated content subtype never matters.
type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	frame, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec cannot marshal %T", v)
	}
	return *frame, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	frame, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec cannot unmarshal into %T", v)
	}
	// The incoming buffer may be recycled once decoding returns.
	*frame = append([]byte(nil), data...)
	return nil
}
