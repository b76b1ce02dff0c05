package domain

import "time"

// AdmissionTier labels which stage of the placement cascade produced a
// decision. The label is informational; every tier runs the same probe.
type AdmissionTier string

const (
	TierPrimary   AdmissionTier = "PRIMARY"   // nearest node
	TierSecondary AdmissionTier = "SECONDARY" // second nearest node
	TierRemaining AdmissionTier = "REMAINING" // rest of the ranking, in order
	TierFallback  AdmissionTier = "FALLBACK"  // pending queue of the nearest node
)

// Attempt records a single admission probe against one node.
type Attempt struct {
	Node       string        `json:"node"`
	Tier       AdmissionTier `json:"tier"`
	DistanceKm float64       `json:"distance_km"`
	Admitted   bool          `json:"admitted"`
}

// Placement is the outcome of driving one task through the admission cascade.
// Node is always set: when no node could admit the task, Queued is true and
// Node names the nearest node whose pending queue holds it.
type Placement struct {
	TaskID   string    `json:"task_id"`
	Node     string    `json:"node"`
	Queued   bool      `json:"queued"`
	Attempts []Attempt `json:"attempts"`
}

// EstimateRequest carries the estimator inputs for one admitted task.
type EstimateRequest struct {
	SizeMI      float64 // Task workload in million instructions
	ComputeRate float64 // Capacity MIPS of the admitting node
	LoadFactor  float64 // MIPS consumption of the node at admission, 0..1
	DistanceKm  float64 // Great circle distance between task origin and node
}

// Estimate is the modelled cost of serving one task on one node. Durations
// and energy are never negative.
type Estimate struct {
	Transmission time.Duration
	Processing   time.Duration
	EnergyWh     float64
}

// CompletionEvent describes one finished task. Exactly one event is produced
// per admitted task and callbacks see it at most once.
type CompletionEvent struct {
	TaskID           string        `json:"task_id"`
	TaskName         string        `json:"task_name"`
	Node             string        `json:"node"`
	QueueTime        time.Duration `json:"queue_time"`
	TransmissionTime time.Duration `json:"transmission_time"`
	ProcessingTime   time.Duration `json:"processing_time"`
	TotalTime        time.Duration `json:"total_time"`
	EnergyWh         float64       `json:"energy_wh"`
	RequiredMIPS     float64       `json:"required_mips"` // For workload accounting downstream
	CompletedAt      time.Time     `json:"completed_at"`
}
