package transport

import "encoding/json"

// jsonCodec lets agents stream JSON frames over gRPC without generated
// protobuf types; it is registered under the "json" content-subtype so
// clients selecting that subtype are decoded transparently.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
