package model

import "encoding/json"

type MessageType string

const (
	MessageTypeNodeTelemetry      MessageType = "node_telemetry"
	MessageTypeContainerInventory MessageType = "container_inventory"
)

// Envelope is transport-agnostic framing for stream payloads. The payload
// is kept raw so each message type can be decoded after dispatch.
type Envelope struct {
	Type          MessageType     `json:"type"`
	NodeName      string          `json:"node_name"`
	TimestampUnix int64           `json:"timestamp_unix"`
	Payload       json.RawMessage `json:"payload"`
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
