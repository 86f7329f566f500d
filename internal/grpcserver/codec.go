package grpcserver

import "encoding/json"

// JSONCodec carries messages as JSON. The service has no generated protobuf
// types, so both server and client force this codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string { return "json" }
