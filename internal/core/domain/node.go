package domain

import "time"

// NodeSpec is the static description of an offload target, loaded once from
// configuration and never mutated afterwards.
type NodeSpec struct {
	Name     string    `json:"name"`
	Capacity Resources `json:"capacity"`
	Location Location  `json:"location"`
}

// NodeStatus is a point in time view of a node's ledger and queue, taken
// under the node lock. LoadPercent is derived from MIPS consumption only; it
// never participates in admission decisions.
type NodeStatus struct {
	Name           string    `json:"name"`
	Capacity       Resources `json:"capacity"`
	Available      Resources `json:"available"`
	LoadPercent    float64   `json:"load_percent"` // 0..100
	QueueLength    int       `json:"queue_length"`
	AssignedTasks  int       `json:"assigned_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	UpdatedAt      time.Time `json:"updated_at"`
}
