package lbgrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated as the gRPC content-subtype (content-type
// "application/grpc+json"); it is registered once via init() below and
// selected per-call with grpc.CallContentSubtype(codecName), mirroring how
// protoc-generated stubs get the default "proto" subtype wired in for free —
// here there is no protoc, so the codec is hand-registered instead.
const codecName = "json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json, standing in for the protobuf wire codec a protoc-generated
// client/server pair would normally use.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("lbgrpc: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("lbgrpc: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
