package feedpb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

const CodecName = "feedpb"

// Codec plugs the WireMessage types into gRPC.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(WireMessage)
	if !ok {
		return nil, fmt.Errorf("feedpb: cannot marshal %T", v)
	}
	return m.MarshalWire(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(WireMessage)
	if !ok {
		return fmt.Errorf("feedpb: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (Codec) Name() string { return CodecName }
