package model

type ContainerInfo struct {
	ID    string   `json:"id"`
	Names []string `json:"names"`
	Image string   `json:"image"`
}

// ContainerList is a per-node container inventory. It is observed and
// logged by the monitor but never mutates aggregate state.
type ContainerList struct {
	NodeName   string          `json:"node_name"`
	Containers []ContainerInfo `json:"containers"`
}

type ContainerListFrame struct {
	NodeName      string        `json:"node_name"`
	TimestampUnix int64         `json:"timestamp_unix"`
	Inventory     ContainerList `json:"inventory"`
}

func NewContainerListFrame(list ContainerList, atUnix int64) ContainerListFrame {
	return ContainerListFrame{NodeName: list.NodeName, TimestampUnix: atUnix, Inventory: list}
}
