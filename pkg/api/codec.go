// Package api defines the roomledger.v1 RPC surface: request and response
// messages, procedure names, the JSON codec and Connect clients and handlers.
//
// Messages are plain Go structs encoded as JSON, so both ends must be built
// with WithCodec (the clients and handlers here add it).
package api

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is registered as the "json" codec, replacing Connect's built-in
// protobuf-only JSON codec.
const CodecName = "json"

// Codec marshals protobuf messages with protojson and everything else with
// encoding/json.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if m, ok := v.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// WithCodec is the option every client and handler of this package needs.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
