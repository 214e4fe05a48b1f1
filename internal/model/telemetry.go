package model

// NodeTelemetry is one compute node's latest utilization sample. A new
// sample for the same node name replaces the previous one wholesale.
// JSON field names match the agent wire format and the persisted layout.
type NodeTelemetry struct {
	NodeName    string  `json:"node_name"`
	IP          string  `json:"ip"`
	CPUUsage    float64 `json:"cpu_usage"`
	CPUCount    uint64  `json:"cpu_count"`
	GPUCount    uint64  `json:"gpu_count"`
	UsedMemory  uint64  `json:"used_memory"`
	TotalMemory uint64  `json:"total_memory"`
	MemUsage    float64 `json:"mem_usage"`
	RxBytes     uint64  `json:"rx_bytes"`
	TxBytes     uint64  `json:"tx_bytes"`
	ReadBytes   uint64  `json:"read_bytes"`
	WriteBytes  uint64  `json:"write_bytes"`
	OS          string  `json:"os"`
	Arch        string  `json:"arch"`
}

type TelemetryFrame struct {
	NodeName      string        `json:"node_name"`
	TimestampUnix int64         `json:"timestamp_unix"`
	Sample        NodeTelemetry `json:"sample"`
}

func NewTelemetryFrame(sample NodeTelemetry, atUnix int64) TelemetryFrame {
	return TelemetryFrame{NodeName: sample.NodeName, TimestampUnix: atUnix, Sample: sample}
}
