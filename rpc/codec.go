package rpc

import (
	"github.com/0x5487/marketsim/protocol"
	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype clients must request.
const codecName = "json"

// jsonCodec carries the protocol structs over gRPC without generated
// protobuf messages.
type jsonCodec struct {
	serializer protocol.Serializer
}

func (c jsonCodec) Marshal(v any) ([]byte, error) {
	return c.serializer.Marshal(v)
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	return c.serializer.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{serializer: &protocol.DefaultJSONSerializer{}})
}
